package boltz

type SwapUpdateEvent int

const (
	SwapCreated SwapUpdateEvent = iota
	SwapExpired

	InvoiceSet
	InvoicePaid
	InvoicePending
	InvoiceSettled
	InvoiceExpired
	InvoiceFailedToPay

	MinerFeePaid

	TransactionFailed
	TransactionMempool
	TransactionClaimPending
	TransactionClaimed
	TransactionRefunded
	TransactionConfirmed
	TransactionLockupFailed

	UnknownEvent
)

var swapUpdateEventStrings = map[string]SwapUpdateEvent{
	"swap.created": SwapCreated,
	"swap.expired": SwapExpired,

	"invoice.set":         InvoiceSet,
	"invoice.paid":        InvoicePaid,
	"invoice.pending":     InvoicePending,
	"invoice.settled":     InvoiceSettled,
	"invoice.expired":     InvoiceExpired,
	"invoice.failedToPay": InvoiceFailedToPay,

	"minerfee.paid": MinerFeePaid,

	"transaction.failed":        TransactionFailed,
	"transaction.mempool":       TransactionMempool,
	"transaction.claim.pending": TransactionClaimPending,
	"transaction.claimed":       TransactionClaimed,
	"transaction.refunded":      TransactionRefunded,
	"transaction.confirmed":     TransactionConfirmed,
	"transaction.lockupFailed":  TransactionLockupFailed,
}

func (event SwapUpdateEvent) String() string {
	for key, value := range swapUpdateEventStrings {
		if event == value {
			return key
		}
	}

	return "unknown"
}

func ParseEvent(event string) SwapUpdateEvent {
	if parsed, ok := swapUpdateEventStrings[event]; ok {
		return parsed
	}
	return UnknownEvent
}

// IsFailedSubmarine reports whether boltz gave up on paying the invoice of a submarine swap.
func (event SwapUpdateEvent) IsFailedSubmarine() bool {
	return event == InvoiceFailedToPay || event == SwapExpired || event == TransactionLockupFailed
}

// IsFailedReverse reports whether a reverse swap can no longer be claimed.
func (event SwapUpdateEvent) IsFailedReverse() bool {
	return event == SwapExpired || event == InvoiceExpired || event == TransactionFailed || event == TransactionRefunded
}
