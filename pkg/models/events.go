package models

type SdkEvent interface {
	isSdkEvent()
}

type SdkEventPaymentFailed struct {
	Details Payment
}

type SdkEventPaymentPending struct {
	Details Payment
}

type SdkEventPaymentRefunded struct {
	Details Payment
}

type SdkEventPaymentRefundPending struct {
	Details Payment
}

type SdkEventPaymentSucceeded struct {
	Details Payment
}

type SdkEventPaymentWaitingConfirmation struct {
	Details Payment
}

type SdkEventSynced struct{}

func (SdkEventPaymentFailed) isSdkEvent()              {}
func (SdkEventPaymentPending) isSdkEvent()             {}
func (SdkEventPaymentRefunded) isSdkEvent()            {}
func (SdkEventPaymentRefundPending) isSdkEvent()       {}
func (SdkEventPaymentSucceeded) isSdkEvent()           {}
func (SdkEventPaymentWaitingConfirmation) isSdkEvent() {}
func (SdkEventSynced) isSdkEvent()                     {}

type EventListener interface {
	OnEvent(e SdkEvent)
}

// EventListenerFunc adapts a plain function to EventListener.
type EventListenerFunc func(e SdkEvent)

func (f EventListenerFunc) OnEvent(e SdkEvent) {
	f(e)
}

// PaymentEvent maps a swap state change to the event listeners are notified with.
func PaymentEvent(payment Payment, hasClaimTx bool, hasRefundTx bool) SdkEvent {
	switch payment.Status {
	case Complete:
		return SdkEventPaymentSucceeded{Details: payment}
	case Pending:
		if payment.PaymentType == Receive && hasClaimTx {
			return SdkEventPaymentWaitingConfirmation{Details: payment}
		}
		if payment.PaymentType == Send && hasRefundTx {
			return SdkEventPaymentRefundPending{Details: payment}
		}
		return SdkEventPaymentPending{Details: payment}
	case Failed:
		if payment.PaymentType == Send {
			return SdkEventPaymentRefunded{Details: payment}
		}
		return SdkEventPaymentFailed{Details: payment}
	}
	return nil
}
