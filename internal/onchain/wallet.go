package onchain

import (
	"context"
	"errors"
	"fmt"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

type Balance struct {
	Total       uint64
	Confirmed   uint64
	Unconfirmed uint64
}

type WalletTransaction struct {
	Id string
	// unix seconds, zero while unconfirmed
	Timestamp     uint32
	BlockHeight   uint32
	BalanceChange int64
	Fee           uint64
}

func (tx *WalletTransaction) IsConfirmed() bool {
	return tx.BlockHeight > 0
}

type WalletSendArgs struct {
	Address     string
	Amount      uint64
	SatPerVbyte float64
}

// Wallet is the single-sig liquid wallet funding send swaps and receiving claims.
type Wallet interface {
	Pubkey() string
	NewAddress() (string, error)
	SendToAddress(args WalletSendArgs) (string, error)
	GetSendFee(args WalletSendArgs) (uint64, error)
	GetBalance() (*Balance, error)
	GetTransactions() ([]*WalletTransaction, error)
	FullScan(ctx context.Context) error
	Disconnect() error
}

func InsufficientBalanceError(amount uint64) error {
	return fmt.Errorf("%w for sending %d sats", ErrInsufficientBalance, amount)
}
