package models

import (
	"fmt"
)

type PaymentState int

const (
	Created PaymentState = iota
	Pending
	Complete
	Failed
	TimedOut
)

var paymentStateStrings = map[PaymentState]string{
	Created:  "created",
	Pending:  "pending",
	Complete: "complete",
	Failed:   "failed",
	TimedOut: "timed_out",
}

func (state PaymentState) String() string {
	if str, ok := paymentStateStrings[state]; ok {
		return str
	}
	return fmt.Sprintf("unknown(%d)", int(state))
}

func (state PaymentState) IsFinal() bool {
	return state == Complete || state == Failed
}

func ParsePaymentState(state string) (PaymentState, error) {
	for key, value := range paymentStateStrings {
		if value == state {
			return key, nil
		}
	}
	return 0, fmt.Errorf("invalid payment state: %s", state)
}

// ValidateStateTransition checks whether a swap may move from one state to another.
func ValidateStateTransition(from PaymentState, to PaymentState) error {
	switch to {
	case Created:
		return NewPaymentError(ErrPaymentErrorGeneric, "cannot transition from %s to %s state", from, to)
	case Pending:
		switch from {
		case Created, Pending:
			return nil
		default:
			return NewPaymentError(ErrPaymentErrorGeneric, "cannot transition from %s to %s state", from, to)
		}
	case Complete:
		switch from {
		case Created, Pending:
			return nil
		default:
			return NewPaymentError(ErrPaymentErrorGeneric, "cannot transition from %s to %s state", from, to)
		}
	case Failed, TimedOut:
		return nil
	}
	return NewPaymentError(ErrPaymentErrorGeneric, "unknown target state %s", to)
}
