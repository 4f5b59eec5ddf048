package models

import (
	"crypto/sha256"
	"time"

	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/btcsuite/btcd/btcec/v2"
)

// SendSwap is a submarine swap paying a lightning invoice with L-BTC.
type SendSwap struct {
	Id                string
	Invoice           string
	PaymentHash       []byte
	Preimage          []byte
	PayerAmountSat    uint64
	ReceiverAmountSat uint64
	CreateResponse    *boltz.CreateSwapResponse
	LockupTxId        string
	RefundTxId        string
	CreatedAt         time.Time
	State             PaymentState
	RefundPrivateKey  *btcec.PrivateKey
}

func (swap *SendSwap) Details() SwapDetails {
	return SwapDetails{
		Id:                swap.Id,
		CreatedAt:         uint32(swap.CreatedAt.Unix()),
		Preimage:          formatPreimage(swap.Preimage),
		PayerAmountSat:    swap.PayerAmountSat,
		ReceiverAmountSat: swap.ReceiverAmountSat,
		RefundTxId:        swap.RefundTxId,
		State:             swap.State,
	}
}

// ReceiveSwap is a reverse swap receiving a lightning payment as L-BTC.
type ReceiveSwap struct {
	Id                string
	Preimage          []byte
	CreateResponse    *boltz.CreateReverseSwapResponse
	Invoice           string
	PayerAmountSat    uint64
	ReceiverAmountSat uint64
	ClaimFeesSat      uint64
	ClaimTxId         string
	CreatedAt         time.Time
	State             PaymentState
	ClaimPrivateKey   *btcec.PrivateKey
}

func (swap *ReceiveSwap) PreimageHash() []byte {
	hash := sha256.Sum256(swap.Preimage)
	return hash[:]
}

func (swap *ReceiveSwap) Details() SwapDetails {
	return SwapDetails{
		Id:                swap.Id,
		CreatedAt:         uint32(swap.CreatedAt.Unix()),
		Preimage:          formatPreimage(swap.Preimage),
		PayerAmountSat:    swap.PayerAmountSat,
		ReceiverAmountSat: swap.ReceiverAmountSat,
		State:             swap.State,
	}
}
