package lightning

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
)

var (
	ErrNetworkMismatch = errors.New("invoice is for a different network")
	ErrInvoiceExpired  = errors.New("invoice has expired")
	ErrNoAmount        = errors.New("invoice has no amount")
)

var knownNetworks = []*chaincfg.Params{
	&chaincfg.MainNetParams,
	&chaincfg.TestNet3Params,
	&chaincfg.RegressionNetParams,
	&chaincfg.SigNetParams,
}

type DecodedInvoice struct {
	AmountSat   uint64
	PaymentHash [32]byte
	Expiry      time.Time
}

// decode tries every known network since the invoice prefix determines which one it is for
func decode(invoice string) (*zpay32.Invoice, error) {
	var err error
	for _, params := range knownNetworks {
		var decoded *zpay32.Invoice
		decoded, err = zpay32.Decode(invoice, params)
		if err == nil {
			return decoded, nil
		}
	}
	return nil, err
}

func networkName(params *chaincfg.Params) string {
	switch params.Name {
	case chaincfg.MainNetParams.Name:
		return "bitcoin"
	case chaincfg.RegressionNetParams.Name:
		return "regtest"
	case chaincfg.SigNetParams.Name:
		return "signet"
	default:
		return "testnet"
	}
}

// ParseInvoice decodes a bolt11 invoice of any network
func ParseInvoice(invoice string) (*models.LnInvoice, error) {
	decoded, err := decode(invoice)
	if err != nil {
		return nil, fmt.Errorf("could not decode invoice: %w", err)
	}

	result := &models.LnInvoice{
		Bolt11:                  invoice,
		Network:                 networkName(decoded.Net),
		PaymentHash:             hex.EncodeToString(decoded.PaymentHash[:]),
		Description:             decoded.Description,
		Timestamp:               uint64(decoded.Timestamp.Unix()),
		Expiry:                  uint64(decoded.Expiry().Seconds()),
		MinFinalCltvExpiryDelta: decoded.MinFinalCLTVExpiry(),
	}
	if decoded.Destination != nil {
		result.PayeePubkey = hex.EncodeToString(decoded.Destination.SerializeCompressed())
	}
	if decoded.DescriptionHash != nil {
		descriptionHash := hex.EncodeToString(decoded.DescriptionHash[:])
		result.DescriptionHash = &descriptionHash
	}
	if decoded.MilliSat != nil {
		amount := uint64(*decoded.MilliSat)
		result.AmountMsat = &amount
	}
	if decoded.PaymentAddr != nil {
		result.PaymentSecret = decoded.PaymentAddr[:]
	}
	for _, hint := range decoded.RouteHints {
		var routeHint models.RouteHint
		for _, hop := range hint {
			routeHint.Hops = append(routeHint.Hops, models.RouteHintHop{
				SrcNodeId:                  hex.EncodeToString(hop.NodeID.SerializeCompressed()),
				ShortChannelId:             hop.ChannelID,
				FeesBaseMsat:               hop.FeeBaseMSat,
				FeesProportionalMillionths: hop.FeeProportionalMillionths,
				CltvExpiryDelta:            uint64(hop.CLTVExpiryDelta),
			})
		}
		result.RoutingHints = append(result.RoutingHints, routeHint)
	}
	return result, nil
}

// ValidateInvoice makes sure an invoice can be paid with a swap on network
func ValidateInvoice(invoice string, network *boltz.Network) (*DecodedInvoice, error) {
	decoded, err := decode(invoice)
	if err != nil {
		return nil, fmt.Errorf("could not decode invoice: %w", err)
	}
	if decoded.Net.Name != network.Btc.Name {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrNetworkMismatch, networkName(network.Btc), networkName(decoded.Net))
	}

	expiry := decoded.Timestamp.Add(decoded.Expiry())
	if time.Now().After(expiry) {
		return nil, ErrInvoiceExpired
	}
	if decoded.MilliSat == nil || *decoded.MilliSat == 0 {
		return nil, ErrNoAmount
	}

	return &DecodedInvoice{
		AmountSat:   uint64(decoded.MilliSat.ToSatoshis()),
		PaymentHash: *decoded.PaymentHash,
		Expiry:      expiry,
	}, nil
}
