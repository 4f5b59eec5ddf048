package liquidsdk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/breez/breez-liquid-sdk-go/internal/lightning"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/fiatjaf/go-lnurl"
)

func checkLnUrlPayRequest(request models.LnUrlPayRequest) error {
	data := request.Data
	if request.AmountMsat < data.MinSendable || request.AmountMsat > data.MaxSendable {
		return models.NewLnUrlPayError(
			models.ErrLnUrlPayErrorGeneric,
			"amount %d msat is not between %d and %d", request.AmountMsat, data.MinSendable, data.MaxSendable,
		)
	}
	if request.Comment != nil && len(*request.Comment) > int(data.CommentAllowed) {
		return models.NewLnUrlPayError(
			models.ErrLnUrlPayErrorGeneric, "comment is longer than the %d allowed characters", data.CommentAllowed,
		)
	}
	return nil
}

// checkLnUrlInvoice makes sure the invoice from the callback is for the requested amount and metadata
func checkLnUrlInvoice(invoice *models.LnInvoice, request models.LnUrlPayRequest) error {
	if invoice.AmountMsat == nil || *invoice.AmountMsat != request.AmountMsat {
		return models.NewLnUrlPayError(models.ErrLnUrlPayErrorInvalidInvoice, "invoice amount does not match request")
	}
	if invoice.DescriptionHash != nil {
		hash := sha256.Sum256([]byte(request.Data.MetadataStr))
		if *invoice.DescriptionHash != hex.EncodeToString(hash[:]) {
			return models.NewLnUrlPayError(models.ErrLnUrlPayErrorInvalidInvoice, "invoice description hash does not match metadata")
		}
	}
	return nil
}

func processSuccessAction(action *lnurl.SuccessAction, preimage string) *models.SuccessActionProcessed {
	if action == nil {
		return nil
	}
	processed := &models.SuccessActionProcessed{
		Tag:         action.Tag,
		Message:     action.Message,
		Url:         action.URL,
		Description: action.Description,
	}
	if action.Tag == "aes" {
		decoded, err := hex.DecodeString(preimage)
		if err == nil {
			processed.Message, err = action.Decipher(decoded)
		}
		if err != nil {
			logger.Warnf("Could not decrypt success action: %v", err)
		}
	}
	return processed
}

// LnUrlPay requests an invoice from the lnurl service and pays it
func (sdk *LiquidSdk) LnUrlPay(ctx context.Context, request models.LnUrlPayRequest) (models.LnUrlPayResult, error) {
	if err := checkLnUrlPayRequest(request); err != nil {
		return nil, err
	}

	params := lnurl.LNURLPayParams{
		Callback:        request.Data.Callback,
		MinSendable:     int64(request.Data.MinSendable),
		MaxSendable:     int64(request.Data.MaxSendable),
		EncodedMetadata: request.Data.MetadataStr,
		CommentAllowed:  int64(request.Data.CommentAllowed),
	}
	var comment string
	if request.Comment != nil {
		comment = *request.Comment
	}
	values, err := params.Call(int64(request.AmountMsat), comment, nil)
	if err != nil {
		var lnurlErr lnurl.LNURLErrorResponse
		if errors.As(err, &lnurlErr) {
			return models.LnUrlPayResultEndpointError{Data: models.LnUrlErrorData{Reason: lnurlErr.Reason}}, nil
		}
		return nil, models.NewLnUrlPayError(models.ErrLnUrlPayErrorServiceConnectivity, "%v", err)
	}

	invoice, err := lightning.ParseInvoice(values.PR)
	if err != nil {
		return nil, models.NewLnUrlPayError(models.ErrLnUrlPayErrorInvalidInvoice, "%v", err)
	}
	if err := checkLnUrlInvoice(invoice, request); err != nil {
		return nil, err
	}

	prepared, err := sdk.PrepareSendPayment(models.PrepareSendRequest{Invoice: values.PR})
	if err != nil {
		return nil, models.LnUrlPayErrorFrom(err)
	}
	response, err := sdk.SendPayment(ctx, *prepared)
	if err != nil {
		if errors.Is(err, models.ErrPaymentErrorAlreadyPaid) || errors.Is(err, models.ErrPaymentErrorPaymentTimeout) {
			return nil, models.LnUrlPayErrorFrom(err)
		}
		return models.LnUrlPayResultPayError{Data: models.LnUrlPayErrorData{
			PaymentHash: invoice.PaymentHash,
			Reason:      err.Error(),
		}}, nil
	}

	return models.LnUrlPayResultEndpointSuccess{Data: models.LnUrlPaySuccessData{
		Payment:       response.Payment,
		SuccessAction: processSuccessAction(values.SuccessAction, response.Payment.Preimage),
	}}, nil
}
