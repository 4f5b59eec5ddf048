package models

import (
	"errors"
	"fmt"
)

// Sentinels for PaymentError kinds. Use errors.Is to match them.
var (
	ErrPaymentErrorAlreadyClaimed       = errors.New("PaymentErrorAlreadyClaimed")
	ErrPaymentErrorAlreadyPaid          = errors.New("PaymentErrorAlreadyPaid")
	ErrPaymentErrorPaymentInProgress    = errors.New("PaymentErrorPaymentInProgress")
	ErrPaymentErrorAmountOutOfRange     = errors.New("PaymentErrorAmountOutOfRange")
	ErrPaymentErrorGeneric              = errors.New("PaymentErrorGeneric")
	ErrPaymentErrorInvalidOrExpiredFees = errors.New("PaymentErrorInvalidOrExpiredFees")
	ErrPaymentErrorInsufficientFunds    = errors.New("PaymentErrorInsufficientFunds")
	ErrPaymentErrorInvalidInvoice       = errors.New("PaymentErrorInvalidInvoice")
	ErrPaymentErrorInvalidPreimage      = errors.New("PaymentErrorInvalidPreimage")
	ErrPaymentErrorLwkError             = errors.New("PaymentErrorLwkError")
	ErrPaymentErrorPairsNotFound        = errors.New("PaymentErrorPairsNotFound")
	ErrPaymentErrorPaymentTimeout       = errors.New("PaymentErrorPaymentTimeout")
	ErrPaymentErrorPersistError         = errors.New("PaymentErrorPersistError")
	ErrPaymentErrorRefunded             = errors.New("PaymentErrorRefunded")
	ErrPaymentErrorSendError            = errors.New("PaymentErrorSendError")
	ErrPaymentErrorSignerError          = errors.New("PaymentErrorSignerError")
)

type PaymentError struct {
	kind    error
	Message string

	// only set for refunded payments
	RefundTxId string
}

func NewPaymentError(kind error, format string, args ...any) *PaymentError {
	return &PaymentError{kind: kind, Message: fmt.Sprintf(format, args...)}
}

// PaymentErrorFrom wraps err as a generic payment error unless it already is one.
func PaymentErrorFrom(kind error, err error) *PaymentError {
	var paymentErr *PaymentError
	if errors.As(err, &paymentErr) {
		return paymentErr
	}
	return &PaymentError{kind: kind, Message: err.Error()}
}

func NewPaymentErrorRefunded(err string, refundTxId string) *PaymentError {
	return &PaymentError{kind: ErrPaymentErrorRefunded, Message: err, RefundTxId: refundTxId}
}

func (err *PaymentError) Error() string {
	if err.kind == ErrPaymentErrorRefunded {
		return fmt.Sprintf("PaymentError: Refunded: %s (refund tx %s)", err.Message, err.RefundTxId)
	}
	if err.Message == "" {
		return "PaymentError: " + err.kind.Error()
	}
	return fmt.Sprintf("PaymentError: %s: %s", err.kind.Error(), err.Message)
}

func (err *PaymentError) Unwrap() error {
	return err.kind
}

var (
	ErrSdkErrorAlreadyStarted      = errors.New("SdkErrorAlreadyStarted")
	ErrSdkErrorGeneric             = errors.New("SdkErrorGeneric")
	ErrSdkErrorNotStarted          = errors.New("SdkErrorNotStarted")
	ErrSdkErrorServiceConnectivity = errors.New("SdkErrorServiceConnectivity")
)

type SdkError struct {
	kind    error
	Message string
}

func NewSdkError(kind error, format string, args ...any) *SdkError {
	return &SdkError{kind: kind, Message: fmt.Sprintf(format, args...)}
}

func SdkErrorFrom(err error) *SdkError {
	var sdkErr *SdkError
	if errors.As(err, &sdkErr) {
		return sdkErr
	}
	return &SdkError{kind: ErrSdkErrorGeneric, Message: err.Error()}
}

func (err *SdkError) Error() string {
	if err.Message == "" {
		return "SdkError: " + err.kind.Error()
	}
	return fmt.Sprintf("SdkError: %s: %s", err.kind.Error(), err.Message)
}

func (err *SdkError) Unwrap() error {
	return err.kind
}

var (
	ErrLnUrlPayErrorAlreadyPaid         = errors.New("LnUrlPayErrorAlreadyPaid")
	ErrLnUrlPayErrorGeneric             = errors.New("LnUrlPayErrorGeneric")
	ErrLnUrlPayErrorInvalidUri          = errors.New("LnUrlPayErrorInvalidUri")
	ErrLnUrlPayErrorInvalidInvoice      = errors.New("LnUrlPayErrorInvalidInvoice")
	ErrLnUrlPayErrorPaymentFailed       = errors.New("LnUrlPayErrorPaymentFailed")
	ErrLnUrlPayErrorPaymentTimeout      = errors.New("LnUrlPayErrorPaymentTimeout")
	ErrLnUrlPayErrorServiceConnectivity = errors.New("LnUrlPayErrorServiceConnectivity")
)

type LnUrlPayError struct {
	kind    error
	Message string
}

func NewLnUrlPayError(kind error, format string, args ...any) *LnUrlPayError {
	return &LnUrlPayError{kind: kind, Message: fmt.Sprintf(format, args...)}
}

// LnUrlPayErrorFrom maps payment errors onto their lnurl counterparts.
func LnUrlPayErrorFrom(err error) *LnUrlPayError {
	kind := ErrLnUrlPayErrorGeneric
	switch {
	case errors.Is(err, ErrPaymentErrorAlreadyPaid):
		kind = ErrLnUrlPayErrorAlreadyPaid
	case errors.Is(err, ErrPaymentErrorInvalidInvoice):
		kind = ErrLnUrlPayErrorInvalidInvoice
	case errors.Is(err, ErrPaymentErrorPaymentTimeout):
		kind = ErrLnUrlPayErrorPaymentTimeout
	case errors.Is(err, ErrPaymentErrorRefunded), errors.Is(err, ErrPaymentErrorSendError):
		kind = ErrLnUrlPayErrorPaymentFailed
	}
	return &LnUrlPayError{kind: kind, Message: err.Error()}
}

func (err *LnUrlPayError) Error() string {
	return fmt.Sprintf("LnUrlPayError: %s: %s", err.kind.Error(), err.Message)
}

func (err *LnUrlPayError) Unwrap() error {
	return err.kind
}
