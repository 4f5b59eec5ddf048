package boltz

import (
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Fee is either an absolute amount or a rate, never both
type Fee struct {
	Sats         *uint64
	SatsPerVbyte *float64
}

func (f Fee) HasSats() bool {
	return f.Sats != nil
}

func (f Fee) HasSatsPerVbyte() bool {
	return f.SatsPerVbyte != nil
}

func (f Fee) IsValid() bool {
	return f.HasSats() != f.HasSatsPerVbyte()
}

func AbsoluteFee(sats uint64) Fee {
	return Fee{Sats: &sats}
}

func FeeRate(satsPerVbyte float64) Fee {
	return Fee{SatsPerVbyte: &satsPerVbyte}
}

type OutputDetails struct {
	LockupTransaction *LiquidTransaction
	Vout              uint32
	// the absolute fee paid for this output, set while constructing
	Fee uint64

	// which address to use as the destination for the output
	Address string

	PrivateKey *btcec.PrivateKey

	// empty in case of a refund
	Preimage []byte

	// zero in case of a claim
	TimeoutBlockHeight uint32

	SwapTree    *SwapTree
	Cooperative bool

	SwapId   string
	SwapType SwapType
}

func (output *OutputDetails) IsRefund() bool {
	return len(output.Preimage) == 0
}

type OutputResult struct {
	Err error
	Fee uint64
}

type Results map[string]OutputResult

func (results Results) SetErr(id string, err error) {
	if results[id].Err == nil {
		results[id] = OutputResult{Err: err}
	}
}

// ConstructTransaction spends the given swap outputs. Cooperative outputs get a key path signature from boltz,
// claims which fail to get one fall back to the script path while failed refunds are dropped from the transaction.
func ConstructTransaction(network *Network, outputs []OutputDetails, fee Fee, boltzApi *Api) (*LiquidTransaction, Results, error) {
	if !fee.IsValid() {
		return nil, nil, errors.New("either an absolute fee or a fee rate has to be set")
	}
	if len(outputs) == 0 {
		return nil, nil, errors.New("no outputs")
	}
	results := make(Results, len(outputs))

	getOutValues := func(fee uint64) map[string]uint64 {
		outValues := make(map[string]uint64)

		outLen := uint64(len(outputs))
		feePerOutput := fee / outLen
		feeRemainder := fee % outLen

		for i := range outputs {
			output := &outputs[i]
			output.Fee = feePerOutput + feeRemainder
			feeRemainder = 0

			value, err := output.LockupTransaction.VoutValue(output.Vout)
			if err != nil {
				results.SetErr(output.SwapId, err)
				continue
			}
			if value < output.Fee {
				results.SetErr(output.SwapId, fmt.Errorf("value less than fee: %d < %d", value, output.Fee))
				continue
			}

			results[output.SwapId] = OutputResult{Fee: output.Fee}
			outValues[output.Address] += value - output.Fee
		}
		return outValues
	}

	var absolute uint64
	if fee.HasSats() {
		absolute = *fee.Sats
	} else {
		noFeeTransaction, err := constructLiquidTransaction(network, outputs, getOutValues(0))
		if err != nil {
			return nil, nil, err
		}
		absolute = uint64(math.Ceil(float64(noFeeTransaction.VSize()) * *fee.SatsPerVbyte))
	}

	transaction, err := constructLiquidTransaction(network, outputs, getOutValues(absolute))
	if err != nil {
		return nil, nil, err
	}

	var valid []OutputDetails
	reconstruct := false

	for i, output := range outputs {
		err = func() error {
			if !output.Cooperative {
				return nil
			}
			if boltzApi == nil {
				return errors.New("boltzApi is required for cooperative transactions")
			}
			serialized, err := transaction.Serialize()
			if err != nil {
				return fmt.Errorf("could not serialize transaction: %w", err)
			}

			session, err := NewSigningSession(output.SwapTree)
			if err != nil {
				return fmt.Errorf("could not initialize signing session: %w", err)
			}

			pubNonce := session.PublicNonce()
			var signature *PartialSignature
			switch output.SwapType {
			case ReverseSwap:
				signature, err = boltzApi.ClaimReverseSwap(output.SwapId, &ClaimRequest{
					Transaction: serialized,
					PubNonce:    pubNonce[:],
					Index:       i,
					Preimage:    output.Preimage,
				})
			case NormalSwap:
				signature, err = boltzApi.RefundSwap(output.SwapId, &RefundRequest{
					Transaction: serialized,
					PubNonce:    pubNonce[:],
					Index:       i,
				})
			default:
				err = fmt.Errorf("unknown swap type %q", output.SwapType)
			}
			if err != nil {
				return fmt.Errorf("could not get partial signature from boltz: %w", err)
			}

			if err := session.Finalize(transaction, outputs, network, i, signature); err != nil {
				return fmt.Errorf("could not finalize signing session: %w", err)
			}
			return nil
		}()
		if err != nil {
			if output.IsRefund() {
				results[output.SwapId] = OutputResult{Err: err}
			} else {
				nonCoop := outputs[i]
				nonCoop.Cooperative = false
				valid = append(valid, nonCoop)
			}
			reconstruct = true
		} else {
			valid = append(valid, output)
		}
	}

	if len(valid) == 0 {
		return nil, results, errors.New("all outputs invalid")
	}

	if reconstruct {
		transaction, newResults, err := ConstructTransaction(network, valid, fee, boltzApi)
		if err != nil {
			return nil, nil, err
		}
		for id, result := range newResults {
			results[id] = result
		}
		return transaction, results, nil
	}

	return transaction, results, nil
}
