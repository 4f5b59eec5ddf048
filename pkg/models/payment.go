package models

import (
	"encoding/hex"
	"fmt"
)

type PaymentType int

const (
	Receive PaymentType = iota
	Send
)

func (paymentType PaymentType) String() string {
	if paymentType == Send {
		return "send"
	}
	return "receive"
}

func ParsePaymentType(paymentType string) (PaymentType, error) {
	switch paymentType {
	case "send":
		return Send, nil
	case "receive":
		return Receive, nil
	}
	return 0, fmt.Errorf("invalid payment type: %s", paymentType)
}

// PaymentTxData is a wallet transaction as seen by the last sync. Swap code inserts
// unconfirmed rows right after broadcasting so payments show up before the next scan.
type PaymentTxData struct {
	TxId string
	// unix seconds, nil while unconfirmed
	Timestamp   *uint32
	AmountSat   uint64
	PaymentType PaymentType
	IsConfirmed bool
}

type Payment struct {
	TxId   string
	SwapId string

	Timestamp uint32
	AmountSat uint64
	FeesSat   uint64
	Preimage  string

	RefundTxId        string
	RefundTxAmountSat uint64

	PaymentType PaymentType
	Status      PaymentState
}

// SwapDetails is the part of a swap that is relevant for the payment view.
type SwapDetails struct {
	Id                string
	CreatedAt         uint32
	Preimage          string
	PayerAmountSat    uint64
	ReceiverAmountSat uint64
	RefundTxId        string
	State             PaymentState
}

func (swap *SwapDetails) FeesSat() uint64 {
	if swap.PayerAmountSat < swap.ReceiverAmountSat {
		return 0
	}
	return swap.PayerAmountSat - swap.ReceiverAmountSat
}

// PaymentFromTxData builds the payment for a wallet transaction, optionally linked to a swap.
func PaymentFromTxData(tx PaymentTxData, swap *SwapDetails) Payment {
	payment := Payment{
		TxId:        tx.TxId,
		AmountSat:   tx.AmountSat,
		PaymentType: tx.PaymentType,
		Status:      Pending,
	}
	if tx.IsConfirmed {
		payment.Status = Complete
	}
	if tx.Timestamp != nil {
		payment.Timestamp = *tx.Timestamp
	}
	if swap != nil {
		payment.SwapId = swap.Id
		payment.FeesSat = swap.FeesSat()
		payment.Preimage = swap.Preimage
		payment.RefundTxId = swap.RefundTxId
		payment.Status = swap.State
		if tx.Timestamp == nil {
			payment.Timestamp = swap.CreatedAt
		}
		if tx.PaymentType == Send {
			payment.AmountSat = swap.PayerAmountSat
		} else {
			payment.AmountSat = swap.ReceiverAmountSat
		}
	}
	return payment
}

// PaymentFromSwap builds the payment for a swap that has no wallet transaction yet.
func PaymentFromSwap(paymentType PaymentType, swap SwapDetails) Payment {
	payment := Payment{
		SwapId:      swap.Id,
		Timestamp:   swap.CreatedAt,
		FeesSat:     swap.FeesSat(),
		Preimage:    swap.Preimage,
		RefundTxId:  swap.RefundTxId,
		PaymentType: paymentType,
		Status:      swap.State,
	}
	if paymentType == Send {
		payment.AmountSat = swap.PayerAmountSat
	} else {
		payment.AmountSat = swap.ReceiverAmountSat
	}
	return payment
}

func formatPreimage(preimage []byte) string {
	if len(preimage) == 0 {
		return ""
	}
	return hex.EncodeToString(preimage)
}
