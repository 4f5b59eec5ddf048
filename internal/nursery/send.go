package nursery

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/breez/breez-liquid-sdk-go/internal/database"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/vulpemventures/go-elements/address"
	"github.com/vulpemventures/go-elements/elementsutil"
)

// RegisterSendSwap starts tracking a newly created send swap. The returned channel receives every update of the swap,
// the function stops listening.
func (nursery *Nursery) RegisterSendSwap(swap *models.SendSwap) (<-chan SwapUpdate, func(), error) {
	nursery.addSwapListeners([]string{swap.Id})
	updates, stop := nursery.SwapUpdates(swap.Id)
	if err := nursery.boltzWs.Subscribe([]string{swap.Id}); err != nil {
		stop()
		nursery.removeSwapListener(swap.Id)
		return nil, nil, err
	}
	return updates, stop, nil
}

func sendSwapTree(swap *models.SendSwap) (*boltz.SwapTree, error) {
	response := swap.CreateResponse
	if response == nil {
		return nil, errors.New("swap has no create response")
	}
	tree, err := response.SwapTree.Deserialize()
	if err != nil {
		return nil, err
	}
	claimKey, err := btcec.ParsePubKey(response.ClaimPublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid claim public key: %w", err)
	}
	if err := tree.Init(false, swap.RefundPrivateKey, claimKey); err != nil {
		return nil, err
	}
	return tree, nil
}

func sendSwapOutputArgs(swap *models.SendSwap) (onchain.OutputArgs, error) {
	blindingKey, err := parseBlindingKey(swap.CreateResponse.BlindingKey)
	if err != nil {
		return onchain.OutputArgs{}, err
	}
	return onchain.OutputArgs{
		TransactionId: swap.LockupTxId,
		Address:       swap.CreateResponse.Address,
		BlindingKey:   blindingKey,
	}, nil
}

func parseBlindingKey(raw boltz.HexString) (*btcec.PrivateKey, error) {
	if len(raw) == 0 {
		return nil, errors.New("swap has no blinding key")
	}
	key, _ := btcec.PrivKeyFromBytes(raw)
	return key, nil
}

func (nursery *Nursery) lockupFunds(swap *models.SendSwap) (string, error) {
	feeRate, err := nursery.onchain.EstimateFee()
	if err != nil {
		return "", err
	}
	logger.Infof("Locking up %d sats for Send Swap %s", swap.CreateResponse.ExpectedAmount, swap.Id)
	return nursery.wallet.SendToAddress(onchain.WalletSendArgs{
		Address:     swap.CreateResponse.Address,
		Amount:      swap.CreateResponse.ExpectedAmount,
		SatPerVbyte: feeRate,
	})
}

func checkPreimage(swap *models.SendSwap, preimage []byte) error {
	preimageHash := sha256.Sum256(preimage)
	if !bytes.Equal(swap.PaymentHash, preimageHash[:]) {
		return models.NewPaymentError(models.ErrPaymentErrorInvalidPreimage, "boltz returned wrong preimage: %x", preimage)
	}
	return nil
}

func (nursery *Nursery) cooperativeSwapClaim(swap *models.SendSwap) ([]byte, error) {
	logger.Debugf("Trying to claim swap %s cooperatively", swap.Id)

	claimDetails, err := nursery.boltz.GetSwapClaimDetails(swap.Id)
	if err != nil {
		return nil, fmt.Errorf("could not get claim details from boltz: %w", err)
	}

	// make sure the invoice was actually paid before helping boltz
	if err := checkPreimage(swap, claimDetails.Preimage); err != nil {
		return nil, err
	}

	tree, err := sendSwapTree(swap)
	if err != nil {
		return nil, fmt.Errorf("could not rebuild swap tree: %w", err)
	}

	session, err := boltz.NewSigningSession(tree)
	if err != nil {
		return nil, fmt.Errorf("could not create signing session: %w", err)
	}

	partial, err := session.Sign(claimDetails.TransactionHash, claimDetails.PubNonce)
	if err != nil {
		return nil, fmt.Errorf("could not create partial signature: %w", err)
	}

	if err := nursery.boltz.SendSwapClaimSignature(swap.Id, partial); err != nil {
		return nil, fmt.Errorf("could not send partial signature to boltz: %w", err)
	}
	return claimDetails.Preimage, nil
}

// recoverPreimage looks for the script path claim of boltz spending our lockup output
func (nursery *Nursery) recoverPreimage(swap *models.SendSwap) ([]byte, error) {
	tree, err := sendSwapTree(swap)
	if err != nil {
		return nil, err
	}
	lockupAddress, err := tree.Address(nursery.network, nil)
	if err != nil {
		return nil, err
	}
	script, err := address.ToOutputScript(lockupAddress)
	if err != nil {
		return nil, err
	}
	history, err := nursery.onchain.Provider.GetScriptHistory(script)
	if err != nil {
		return nil, fmt.Errorf("could not get lockup address history: %w", err)
	}
	for _, item := range history {
		if item.TxId == swap.LockupTxId {
			continue
		}
		claimTx, err := nursery.onchain.GetTransaction(item.TxId, nil, false)
		if err != nil {
			return nil, fmt.Errorf("could not fetch claim transaction %s: %w", item.TxId, err)
		}
		for _, input := range claimTx.Inputs {
			if elementsutil.TxIDFromBytes(input.Hash) != swap.LockupTxId {
				continue
			}
			// signature, preimage, leaf script and control block
			if len(input.Witness) != 4 {
				return nil, fmt.Errorf("claim transaction %s is no script path spend", item.TxId)
			}
			preimage := input.Witness[1]
			if err := checkPreimage(swap, preimage); err != nil {
				return nil, err
			}
			logger.Debugf("Found Send Swap %s claim tx preimage: %x", swap.Id, preimage)
			return preimage, nil
		}
	}
	return nil, fmt.Errorf("send swap %s has no claim tx", swap.Id)
}

func (nursery *Nursery) handleSendSwapError(swap *models.SendSwap, status boltz.SwapUpdateEvent, err error) {
	logger.Errorf("Send Swap %s error: %v", swap.Id, err)
	nursery.sendSendSwapUpdate(*swap, status, err)
}

func (nursery *Nursery) handleSendSwapStatus(swap *models.SendSwap, status boltz.SwapStatusResponse) {
	parsedStatus := boltz.ParseEvent(status.Status)

	logger.Infof("Handling Send Swap %s transition to %s", swap.Id, parsedStatus)

	if swap.State.IsFinal() {
		logger.Debugf("Send Swap %s is %s already", swap.Id, swap.State)
		return
	}

	err := func() error {
		switch parsedStatus {
		case boltz.InvoiceSet:
			if swap.LockupTxId != "" {
				logger.Debugf("Send Swap %s is locked up already: %s", swap.Id, swap.LockupTxId)
				return nil
			}
			lockupTxId, err := nursery.lockupFunds(swap)
			if err != nil {
				if errors.Is(err, onchain.ErrInsufficientBalance) {
					err = models.PaymentErrorFrom(models.ErrPaymentErrorInsufficientFunds, err)
				} else {
					err = models.PaymentErrorFrom(models.ErrPaymentErrorSendError, err)
				}
				logger.Errorf("Could not lock up funds for Send Swap %s: %v", swap.Id, err)
				// nothing was locked up, so there is nothing to refund either
				return nursery.transitionSendSwap(swap, models.Failed, parsedStatus, nil, err)
			}
			logger.Infof("Broadcast lockup transaction for Send Swap %s: %s", swap.Id, lockupTxId)
			return nursery.updateSendSwap(swap, models.Pending, parsedStatus, func(tx *database.Transaction) error {
				return tx.SetSendSwapLockupTxId(swap, lockupTxId)
			})

		case boltz.TransactionClaimPending:
			preimage, err := nursery.cooperativeSwapClaim(swap)
			if err != nil {
				return err
			}
			if swap.LockupTxId != "" {
				// the wallet might not pick up the lockup for a while
				if err := nursery.database.InsertOrUpdatePaymentTxData(models.PaymentTxData{
					TxId:        swap.LockupTxId,
					AmountSat:   swap.PayerAmountSat,
					PaymentType: models.Send,
				}); err != nil {
					return models.PaymentErrorFrom(models.ErrPaymentErrorPersistError, err)
				}
			}
			return nursery.updateSendSwap(swap, models.Complete, parsedStatus, func(tx *database.Transaction) error {
				return tx.SetSendSwapPreimage(swap, preimage)
			})

		case boltz.TransactionClaimed:
			preimage := swap.Preimage
			if len(preimage) == 0 {
				logger.Warnf("Send Swap %s has been claimed without us, looking for preimage", swap.Id)
				var err error
				preimage, err = nursery.recoverPreimage(swap)
				if err != nil {
					return err
				}
			}
			return nursery.updateSendSwap(swap, models.Complete, parsedStatus, func(tx *database.Transaction) error {
				return tx.SetSendSwapPreimage(swap, preimage)
			})
		}

		if parsedStatus.IsFailedSubmarine() {
			logger.Warnf("Send Swap %s is in an unrecoverable state: %s", swap.Id, parsedStatus)
			if swap.LockupTxId == "" {
				cause := models.NewPaymentError(models.ErrPaymentErrorGeneric, "swap failed before lockup: %s", parsedStatus)
				return nursery.transitionSendSwap(swap, models.Failed, parsedStatus, nil, cause)
			}
			if swap.RefundTxId != "" {
				logger.Infof("Send Swap %s was refunded already: %s", swap.Id, swap.RefundTxId)
				return nil
			}
			// failed outputs are reported to the swap listeners already
			if _, err := nursery.refundSendSwaps([]*models.SendSwap{swap}, parsedStatus); err != nil {
				logger.Warnf("Could not refund Send Swap %s: %v", swap.Id, err)
			}
		}
		return nil
	}()
	if err != nil {
		nursery.handleSendSwapError(swap, parsedStatus, err)
	}
}
