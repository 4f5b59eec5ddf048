package nursery

import (
	"fmt"
	"slices"

	"github.com/breez/breez-liquid-sdk-go/internal/database"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/breez/breez-liquid-sdk-go/internal/utils"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
)

func (nursery *Nursery) startBlockListener() *utils.ChannelForwarder[*onchain.BlockEpoch] {
	blockNotifier := nursery.onchain.RegisterBlockListener(nursery.ctx)
	blocks := blockNotifier.Get()

	nursery.waitGroup.Add(1)
	go func() {
		defer nursery.waitGroup.Done()
		for newBlock := range blocks {
			logger.Debugf("Processing new block: %d", newBlock.Height)
			if err := nursery.checkRefundableSwaps(newBlock.Height); err != nil {
				logger.Error("Could not check refundable Swaps: " + err.Error())
			}
			if err := nursery.checkClaimableSwaps(); err != nil {
				logger.Error("Could not check claimable Swaps: " + err.Error())
			}
		}
	}()

	return blockNotifier
}

// checkRefundableSwaps refunds locked up send swaps whose timeout passed without boltz claiming them
func (nursery *Nursery) checkRefundableSwaps(height uint32) error {
	nursery.updateLock.Lock()
	defer nursery.updateLock.Unlock()

	swaps, err := nursery.database.QueryOngoingSendSwaps()
	if err != nil {
		return fmt.Errorf("could not query refundable Swaps: %w", err)
	}
	swaps = slices.DeleteFunc(swaps, func(swap *models.SendSwap) bool {
		return swap.LockupTxId == "" || swap.RefundTxId != "" ||
			swap.CreateResponse == nil || swap.CreateResponse.TimeoutBlockHeight > height
	})
	if len(swaps) > 0 {
		logger.Infof("Found %d Swaps to refund at height %d", len(swaps), height)
		if _, err := nursery.refundSendSwaps(swaps, boltz.UnknownEvent); err != nil {
			return fmt.Errorf("could not refund Swaps: %w", err)
		}
	}
	return nil
}

func (nursery *Nursery) getRefundOutput(swap *models.SendSwap, status boltz.SwapUpdateEvent, height uint32) (*Output, error) {
	tree, err := sendSwapTree(swap)
	if err != nil {
		return nil, fmt.Errorf("could not rebuild swap tree: %w", err)
	}
	outputArgs, err := sendSwapOutputArgs(swap)
	if err != nil {
		return nil, err
	}
	timeout := swap.CreateResponse.TimeoutBlockHeight
	return &Output{
		OutputDetails: &boltz.OutputDetails{
			SwapId:             swap.Id,
			SwapType:           boltz.NormalSwap,
			PrivateKey:         swap.RefundPrivateKey,
			Preimage:           []byte{},
			TimeoutBlockHeight: timeout,
			SwapTree:           tree,
			// after the timeout we do not need boltz anymore
			Cooperative: timeout > height,
		},
		outputArgs: outputArgs,
		setTransaction: func(transactionId string, fee uint64) error {
			logger.Infof("Broadcast refund tx for Send Swap %s: %s", swap.Id, transactionId)
			return nursery.updateSendSwap(swap, models.Pending, status, func(tx *database.Transaction) error {
				return tx.SetSendSwapRefundTxId(swap, transactionId)
			})
		},
		setError: func(err error) {
			if timeout > height {
				err = fmt.Errorf("%w, refunding at block %d", err, timeout)
			}
			nursery.handleSendSwapError(swap, status, err)
		},
	}, nil
}

func (nursery *Nursery) refundSendSwaps(swaps []*models.SendSwap, status boltz.SwapUpdateEvent) (string, error) {
	height, err := nursery.onchain.GetBlockHeight()
	if err != nil {
		return "", fmt.Errorf("could not get block height: %w", err)
	}

	var outputs []*Output
	for _, swap := range swaps {
		output, err := nursery.getRefundOutput(swap, status, height)
		if err != nil {
			nursery.handleSendSwapError(swap, status, err)
			continue
		}
		logger.Debugf(
			"Output for swap %s cooperative: %t (%d > %d)",
			output.SwapId, output.Cooperative, output.TimeoutBlockHeight, height,
		)
		outputs = append(outputs, output)
	}

	if len(outputs) == 0 {
		logger.Info("Did not find any outputs to refund")
		return "", nil
	}

	feeRate, err := nursery.onchain.EstimateFee()
	if err != nil {
		return "", err
	}
	return nursery.createTransaction(outputs, feeRate)
}
