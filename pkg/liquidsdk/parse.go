package liquidsdk

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/breez/breez-liquid-sdk-go/internal/lightning"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/fiatjaf/go-lnurl"
	"github.com/vulpemventures/go-elements/address"
	liquidnetwork "github.com/vulpemventures/go-elements/network"
)

var ErrUnrecognizedInput = errors.New("unrecognized input")

// ParseInvoice decodes a bolt11 invoice of any network
func ParseInvoice(input string) (*models.LnInvoice, error) {
	invoice, err := lightning.ParseInvoice(stripScheme(strings.TrimSpace(input), "lightning"))
	if err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorInvalidInvoice, "%v", err)
	}
	return invoice, nil
}

// stripScheme removes a uri scheme and, for payment uris, the query parameters
func stripScheme(input string, schemes ...string) string {
	for _, scheme := range schemes {
		if len(input) > len(scheme) && strings.EqualFold(input[:len(scheme)+1], scheme+":") {
			input = input[len(scheme)+1:]
			if index := strings.Index(input, "?"); index != -1 {
				input = input[:index]
			}
			return input
		}
	}
	return input
}

func liquidNetworkOf(raw string) (models.Network, bool) {
	networks := map[models.Network]*liquidnetwork.Network{
		models.Liquid:        &liquidnetwork.Liquid,
		models.LiquidTestnet: &liquidnetwork.Testnet,
	}
	lower := strings.ToLower(raw)
	for name, net := range networks {
		if strings.HasPrefix(lower, net.Blech32+"1") || strings.HasPrefix(lower, net.Bech32+"1") {
			return name, true
		}
	}
	_, version, err := base58.CheckDecode(raw)
	if err != nil {
		return "", false
	}
	for name, net := range networks {
		if version == net.PubKeyHash || version == net.ScriptHash || version == net.Confidential {
			return name, true
		}
	}
	return "", false
}

func parseLiquidAddress(input string) (*models.InputTypeLiquidAddress, bool) {
	raw := stripScheme(input, "liquidnetwork", "liquidtestnet")
	if _, err := address.ToOutputScript(raw); err != nil {
		return nil, false
	}
	network, ok := liquidNetworkOf(raw)
	if !ok {
		return nil, false
	}
	return &models.InputTypeLiquidAddress{Address: raw, Network: network}, true
}

func parseBitcoinAddress(input string) (*models.InputTypeBitcoinAddress, bool) {
	raw := stripScheme(input, "bitcoin")
	for _, params := range []*chaincfg.Params{&chaincfg.MainNetParams, &chaincfg.TestNet3Params, &chaincfg.RegressionNetParams} {
		decoded, err := btcutil.DecodeAddress(raw, params)
		if err != nil {
			continue
		}
		// raw public keys decode as p2pk but are not payable addresses
		if _, isPubKey := decoded.(*btcutil.AddressPubKey); isPubKey {
			return nil, false
		}
		if decoded.IsForNet(params) {
			network := "testnet"
			switch params {
			case &chaincfg.MainNetParams:
				network = "bitcoin"
			case &chaincfg.RegressionNetParams:
				network = "regtest"
			}
			return &models.InputTypeBitcoinAddress{Address: raw, Network: network}, true
		}
	}
	return nil, false
}

func isNodeId(input string) bool {
	decoded, err := hex.DecodeString(input)
	if err != nil || len(decoded) != btcec.PubKeyBytesLenCompressed {
		return false
	}
	_, err = btcec.ParsePubKey(decoded)
	return err == nil
}

func isLnUrl(input string) bool {
	lower := strings.ToLower(input)
	for _, prefix := range []string{"lnurl", "lightning:lnurl", "lnurlp://", "lnurlw://", "keyauth://"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	// lightning address
	user, domain, found := strings.Cut(input, "@")
	return found && user != "" && strings.Contains(domain, ".")
}

func callbackHost(callback string) string {
	parsed, err := url.Parse(callback)
	if err != nil {
		return ""
	}
	return parsed.Host
}

func parseLnUrl(input string) (models.InputType, error) {
	_, params, err := lnurl.HandleLNURL(input)
	if err != nil {
		var lnurlErr lnurl.LNURLErrorResponse
		if errors.As(err, &lnurlErr) {
			return models.InputTypeLnUrlError{Data: models.LnUrlErrorData{Reason: lnurlErr.Reason}}, nil
		}
		return nil, fmt.Errorf("could not resolve lnurl: %w", err)
	}

	switch params := params.(type) {
	case lnurl.LNURLPayParams:
		data := models.LnUrlPayRequestData{
			Callback:       params.Callback,
			MinSendable:    uint64(params.MinSendable),
			MaxSendable:    uint64(params.MaxSendable),
			MetadataStr:    params.EncodedMetadata,
			CommentAllowed: uint16(params.CommentAllowed),
			Domain:         callbackHost(params.Callback),
		}
		if strings.Contains(input, "@") {
			data.LnAddress = stripScheme(input, "lightning")
		}
		return models.InputTypeLnUrlPay{Data: data}, nil
	case lnurl.LNURLWithdrawResponse:
		return models.InputTypeLnUrlWithdraw{Data: models.LnUrlWithdrawRequestData{
			Callback:           params.Callback,
			K1:                 params.K1,
			DefaultDescription: params.DefaultDescription,
			MinWithdrawable:    uint64(params.MinWithdrawable),
			MaxWithdrawable:    uint64(params.MaxWithdrawable),
		}}, nil
	case lnurl.LNURLAuthParams:
		var action string
		if parsed, err := url.Parse(params.Callback); err == nil {
			action = parsed.Query().Get("action")
		}
		return models.InputTypeLnUrlAuth{Data: models.LnUrlAuthRequestData{
			K1:     params.K1,
			Action: action,
			Domain: params.Host,
			Url:    params.Callback,
		}}, nil
	}
	return nil, fmt.Errorf("unsupported lnurl kind: %s", params.LNURLKind())
}

// Parse detects what kind of payment destination input is. Lnurls are resolved, everything else is parsed offline.
func Parse(ctx context.Context, input string) (models.InputType, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrUnrecognizedInput
	}

	if invoice, err := lightning.ParseInvoice(stripScheme(input, "lightning")); err == nil {
		return models.InputTypeBolt11{Invoice: *invoice}, nil
	}
	if liquidAddress, ok := parseLiquidAddress(input); ok {
		return *liquidAddress, nil
	}
	if isNodeId(input) {
		return models.InputTypeNodeId{NodeId: input}, nil
	}
	if bitcoinAddress, ok := parseBitcoinAddress(input); ok {
		return *bitcoinAddress, nil
	}
	if isLnUrl(input) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return parseLnUrl(input)
	}
	if parsed, err := url.Parse(input); err == nil && parsed.Host != "" &&
		(parsed.Scheme == "http" || parsed.Scheme == "https") {
		return models.InputTypeUrl{Url: input}, nil
	}
	return nil, ErrUnrecognizedInput
}
