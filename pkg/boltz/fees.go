package boltz

import (
	"errors"
	"fmt"
)

var ErrAmountOutOfRange = errors.New("amount out of range")

func (limits Limits) Check(amount uint64) error {
	if amount < limits.Minimal {
		return fmt.Errorf("%w: %d is less than minimum %d", ErrAmountOutOfRange, amount, limits.Minimal)
	}
	if limits.Maximal != 0 && amount > limits.Maximal {
		return fmt.Errorf("%w: %d is more than maximum %d", ErrAmountOutOfRange, amount, limits.Maximal)
	}
	return nil
}

// TotalFees are the service and miner fees boltz charges for a submarine swap paying an invoice of `invoiceAmount`.
func (pair *SubmarinePair) TotalFees(invoiceAmount uint64) uint64 {
	return pair.Fees.Percentage.Calculate(invoiceAmount) + pair.Fees.MinerFees
}

// TotalFees are the service fee plus lockup and claim miner fees of a reverse swap over `invoiceAmount`.
func (pair *ReversePair) TotalFees(invoiceAmount uint64) uint64 {
	return pair.Fees.Percentage.Calculate(invoiceAmount) + pair.Fees.MinerFees.Lockup + pair.Fees.MinerFees.Claim
}

// ClaimFeeEstimate is what boltz expects the claim transaction to cost.
func (pair *ReversePair) ClaimFeeEstimate() uint64 {
	return pair.Fees.MinerFees.Claim
}

// OnchainAmount is what ends up in the lockup output of a reverse swap over `invoiceAmount`.
func (pair *ReversePair) OnchainAmount(invoiceAmount uint64) uint64 {
	fees := pair.Fees.Percentage.Calculate(invoiceAmount) + pair.Fees.MinerFees.Lockup
	if fees > invoiceAmount {
		return 0
	}
	return invoiceAmount - fees
}
