package nursery

import (
	"github.com/breez/breez-liquid-sdk-go/internal/database"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
)

type swapUpdater func(tx *database.Transaction) error

func (nursery *Nursery) updateSendSwap(swap *models.SendSwap, state models.PaymentState, status boltz.SwapUpdateEvent, update swapUpdater) error {
	return nursery.transitionSendSwap(swap, state, status, update, nil)
}

// transitionSendSwap validates, persists and announces a state change. cause is passed on to the swap listeners.
func (nursery *Nursery) transitionSendSwap(swap *models.SendSwap, state models.PaymentState, status boltz.SwapUpdateEvent, update swapUpdater, cause error) error {
	logger.Infof("Transitioning Send Swap %s to %s", swap.Id, state)
	if err := models.ValidateStateTransition(swap.State, state); err != nil {
		return err
	}
	err := nursery.database.RunTx(func(tx *database.Transaction) error {
		if update != nil {
			if err := update(tx); err != nil {
				return err
			}
		}
		return tx.UpdateSendSwapState(swap, state)
	})
	if err != nil {
		return models.PaymentErrorFrom(models.ErrPaymentErrorPersistError, err)
	}
	nursery.emitPayment(swap.Id, false, swap.RefundTxId != "")
	nursery.sendSendSwapUpdate(*swap, status, cause)
	return nil
}

func (nursery *Nursery) updateReceiveSwap(swap *models.ReceiveSwap, state models.PaymentState, status boltz.SwapUpdateEvent, update swapUpdater) error {
	logger.Infof("Transitioning Receive Swap %s to %s", swap.Id, state)
	if err := models.ValidateStateTransition(swap.State, state); err != nil {
		return err
	}
	err := nursery.database.RunTx(func(tx *database.Transaction) error {
		if update != nil {
			if err := update(tx); err != nil {
				return err
			}
		}
		return tx.UpdateReceiveSwapState(swap, state)
	})
	if err != nil {
		return models.PaymentErrorFrom(models.ErrPaymentErrorPersistError, err)
	}
	nursery.emitPayment(swap.Id, swap.ClaimTxId != "", false)
	nursery.sendReceiveSwapUpdate(*swap, status, nil)
	return nil
}

func (nursery *Nursery) sendSendSwapUpdate(swap models.SendSwap, status boltz.SwapUpdateEvent, err error) {
	nursery.sendUpdate(swap.Id, SwapUpdate{
		SendSwap: &swap,
		Status:   status,
		Err:      err,
		IsFinal:  swap.State.IsFinal(),
	})
}

func (nursery *Nursery) sendReceiveSwapUpdate(swap models.ReceiveSwap, status boltz.SwapUpdateEvent, err error) {
	nursery.sendUpdate(swap.Id, SwapUpdate{
		ReceiveSwap: &swap,
		Status:      status,
		Err:         err,
		IsFinal:     swap.State.IsFinal(),
	})
}

// UpdateSendSwapState moves a send swap to a new state outside of a boltz status update, like after a sync
func (nursery *Nursery) UpdateSendSwapState(swap *models.SendSwap, state models.PaymentState) error {
	nursery.updateLock.Lock()
	defer nursery.updateLock.Unlock()
	return nursery.updateSendSwap(swap, state, boltz.UnknownEvent, nil)
}

// UpdateReceiveSwapState moves a receive swap to a new state outside of a boltz status update, like after a sync
func (nursery *Nursery) UpdateReceiveSwapState(swap *models.ReceiveSwap, state models.PaymentState) error {
	nursery.updateLock.Lock()
	defer nursery.updateLock.Unlock()
	return nursery.updateReceiveSwap(swap, state, boltz.UnknownEvent, nil)
}
