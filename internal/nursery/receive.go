package nursery

import (
	"errors"
	"fmt"

	"github.com/breez/breez-liquid-sdk-go/internal/database"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/btcsuite/btcd/btcec/v2"
)

func (nursery *Nursery) RegisterReceiveSwap(swap *models.ReceiveSwap) error {
	return nursery.registerSwaps([]string{swap.Id})
}

func receiveSwapTree(swap *models.ReceiveSwap) (*boltz.SwapTree, error) {
	response := swap.CreateResponse
	if response == nil {
		return nil, errors.New("swap has no create response")
	}
	tree, err := response.SwapTree.Deserialize()
	if err != nil {
		return nil, err
	}
	refundKey, err := btcec.ParsePubKey(response.RefundPublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid refund public key: %w", err)
	}
	if err := tree.Init(true, swap.ClaimPrivateKey, refundKey); err != nil {
		return nil, err
	}
	return tree, nil
}

func (nursery *Nursery) getReceiveSwapClaimOutput(swap *models.ReceiveSwap, lockupTxId string, status boltz.SwapUpdateEvent) (*Output, error) {
	tree, err := receiveSwapTree(swap)
	if err != nil {
		return nil, fmt.Errorf("could not rebuild swap tree: %w", err)
	}
	blindingKey, err := parseBlindingKey(swap.CreateResponse.BlindingKey)
	if err != nil {
		return nil, err
	}
	return &Output{
		OutputDetails: &boltz.OutputDetails{
			SwapId:      swap.Id,
			SwapType:    boltz.ReverseSwap,
			PrivateKey:  swap.ClaimPrivateKey,
			Preimage:    swap.Preimage,
			SwapTree:    tree,
			Cooperative: true,
		},
		outputArgs: onchain.OutputArgs{
			TransactionId:  lockupTxId,
			Address:        swap.CreateResponse.LockupAddress,
			BlindingKey:    blindingKey,
			ExpectedAmount: swap.CreateResponse.OnchainAmount,
		},
		setTransaction: func(transactionId string, fee uint64) error {
			logger.Infof("Broadcast claim tx %s for Receive Swap %s", transactionId, swap.Id)
			// the wallet might not pick up the claim for a while
			if err := nursery.database.InsertOrUpdatePaymentTxData(models.PaymentTxData{
				TxId:        transactionId,
				AmountSat:   swap.ReceiverAmountSat,
				PaymentType: models.Receive,
			}); err != nil {
				return err
			}
			return nursery.updateReceiveSwap(swap, models.Pending, status, func(tx *database.Transaction) error {
				return tx.SetReceiveSwapClaimTxId(swap, transactionId)
			})
		},
		setError: func(err error) {
			nursery.handleReceiveSwapError(swap, status, err)
		},
	}, nil
}

func (nursery *Nursery) claimReceiveSwap(swap *models.ReceiveSwap, lockupTxId string, status boltz.SwapUpdateEvent) error {
	if swap.ClaimTxId != "" {
		return models.NewPaymentError(models.ErrPaymentErrorAlreadyClaimed, "claim tx %s was already broadcast", swap.ClaimTxId)
	}
	if lockupTxId == "" {
		response, err := nursery.boltz.GetReverseSwapTransaction(swap.Id)
		if err != nil {
			return fmt.Errorf("could not get lockup transaction from boltz: %w", err)
		}
		lockupTxId = response.Id
	}

	logger.Debugf("Trying to claim Receive Swap %s", swap.Id)

	output, err := nursery.getReceiveSwapClaimOutput(swap, lockupTxId, status)
	if err != nil {
		return err
	}
	_, err = nursery.createTransaction([]*Output{output}, nursery.claimFeeRate)
	return err
}

func (nursery *Nursery) handleReceiveSwapError(swap *models.ReceiveSwap, status boltz.SwapUpdateEvent, err error) {
	logger.Errorf("Receive Swap %s error: %v", swap.Id, err)
	nursery.sendReceiveSwapUpdate(*swap, status, err)
}

func (nursery *Nursery) handleReceiveSwapStatus(swap *models.ReceiveSwap, status boltz.SwapStatusResponse) {
	parsedStatus := boltz.ParseEvent(status.Status)

	logger.Infof("Handling Receive Swap %s transition to %s", swap.Id, parsedStatus)

	if swap.State.IsFinal() {
		logger.Debugf("Receive Swap %s is %s already", swap.Id, swap.State)
		return
	}

	var err error
	switch {
	case parsedStatus.IsFailedReverse():
		logger.Errorf("Receive Swap %s entered into an unrecoverable state: %s", swap.Id, parsedStatus)
		err = nursery.updateReceiveSwap(swap, models.Failed, parsedStatus, nil)

	case parsedStatus == boltz.TransactionMempool || parsedStatus == boltz.TransactionConfirmed:
		if swap.ClaimTxId != "" {
			logger.Warnf("Claim tx for Receive Swap %s was already broadcast: %s", swap.Id, swap.ClaimTxId)
			return
		}
		if swap.State == models.Created {
			if err := nursery.updateReceiveSwap(swap, models.Pending, parsedStatus, nil); err != nil {
				nursery.handleReceiveSwapError(swap, parsedStatus, err)
				return
			}
		}
		if parsedStatus == boltz.TransactionMempool && !nursery.acceptsZeroConf(swap, status.Transaction.Id) {
			logger.Infof("Waiting for lockup of Receive Swap %s to confirm", swap.Id)
			return
		}
		// failed outputs are reported to the swap listeners already
		if err := nursery.claimReceiveSwap(swap, status.Transaction.Id, parsedStatus); err != nil {
			if errors.Is(err, models.ErrPaymentErrorAlreadyClaimed) {
				logger.Warnf("Funds already claimed for Receive Swap %s", swap.Id)
			} else {
				logger.Errorf("Claim for Receive Swap %s failed: %v", swap.Id, err)
			}
		}
		return
	}
	if err != nil {
		nursery.handleReceiveSwapError(swap, parsedStatus, err)
	}
}

// acceptsZeroConf checks an unconfirmed lockup against the zero-conf limits. Lockups that can not be
// checked have to confirm first.
func (nursery *Nursery) acceptsZeroConf(swap *models.ReceiveSwap, lockupTxId string) bool {
	if nursery.AcceptZeroConf == nil {
		return true
	}
	if lockupTxId == "" {
		return false
	}
	transaction, err := nursery.onchain.GetTransaction(lockupTxId, nil, false)
	if err != nil {
		logger.Warnf("Could not fetch lockup %s of Receive Swap %s: %v", lockupTxId, swap.Id, err)
		return false
	}
	fee, err := onchain.GetTransactionFee(transaction)
	if err != nil {
		logger.Warnf("Could not get fee of lockup %s: %v", lockupTxId, err)
		return false
	}
	feeRate := float64(fee) / float64(transaction.VSize())
	return nursery.AcceptZeroConf(swap.CreateResponse.OnchainAmount, feeRate)
}

// checkClaimableSwaps retries claims of receive swaps whose lockup was seen but that could not be claimed yet
func (nursery *Nursery) checkClaimableSwaps() error {
	nursery.updateLock.Lock()
	defer nursery.updateLock.Unlock()

	swaps, err := nursery.database.QueryReceiveSwaps(database.SwapQuery{
		States: []models.PaymentState{models.Pending},
	})
	if err != nil {
		return fmt.Errorf("could not query claimable Swaps: %w", err)
	}
	for _, swap := range swaps {
		if swap.ClaimTxId != "" {
			continue
		}
		logger.Infof("Retrying claim of Receive Swap %s", swap.Id)
		if err := nursery.claimReceiveSwap(swap, "", boltz.UnknownEvent); err != nil {
			logger.Warnf("Could not claim Receive Swap %s: %v", swap.Id, err)
		}
	}
	return nil
}
