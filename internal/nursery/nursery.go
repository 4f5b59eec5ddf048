package nursery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/breez/breez-liquid-sdk-go/internal/database"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/breez/breez-liquid-sdk-go/internal/utils"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
)

const swapListenerBuffer = 5

// Nursery tracks the boltz status of every ongoing swap and drives it to completion
type Nursery struct {
	ctx    context.Context
	cancel func()

	network *boltz.Network

	onchain  *onchain.Onchain
	wallet   onchain.Wallet
	boltz    *boltz.Api
	boltzWs  *boltz.Websocket
	database *database.Database

	claimFeeRate float64
	emit         func(models.SdkEvent)

	// AcceptZeroConf decides whether a lockup may be claimed before it confirms. Every lockup is accepted if nil.
	AcceptZeroConf func(amount uint64, feeRate float64) bool

	eventListeners     map[string]swapListener
	eventListenersLock sync.RWMutex
	waitGroup          sync.WaitGroup

	// updateLock is held while a swap update is processed so a block triggered claim or refund
	// can not race with a status update of the same swap.
	updateLock sync.Mutex

	Blocks *utils.ChannelForwarder[*onchain.BlockEpoch]
}

func New(
	network *boltz.Network,
	chain *onchain.Onchain,
	wallet onchain.Wallet,
	boltzClient *boltz.Api,
	db *database.Database,
	claimFeeRate float64,
	emit func(models.SdkEvent),
) *Nursery {
	nursery := &Nursery{
		network:        network,
		onchain:        chain,
		wallet:         wallet,
		boltz:          boltzClient,
		boltzWs:        boltzClient.NewWebsocket(),
		database:       db,
		claimFeeRate:   claimFeeRate,
		emit:           emit,
		eventListeners: make(map[string]swapListener),
	}
	nursery.ctx, nursery.cancel = context.WithCancel(context.Background())
	return nursery
}

type SwapUpdate struct {
	SendSwap    *models.SendSwap
	ReceiveSwap *models.ReceiveSwap
	Status      boltz.SwapUpdateEvent
	// set when handling the update failed
	Err     error
	IsFinal bool
}

type swapListener = *utils.ChannelForwarder[SwapUpdate]

func (nursery *Nursery) sendUpdate(id string, update SwapUpdate) {
	if update.IsFinal {
		nursery.boltzWs.Unsubscribe(id)
	}
	nursery.eventListenersLock.RLock()
	listener, ok := nursery.eventListeners[id]
	nursery.eventListenersLock.RUnlock()
	if ok {
		listener.Send(update)
		logger.Debugf("Sent update for swap %s", id)

		if update.IsFinal {
			nursery.removeSwapListener(id)
		}
	} else {
		logger.Debugf("No listener for swap %s", id)
	}
}

// SwapUpdates returns a channel receiving all updates of the swap and a function to stop listening.
// The channel is nil if the swap is not tracked.
func (nursery *Nursery) SwapUpdates(id string) (<-chan SwapUpdate, func()) {
	nursery.eventListenersLock.RLock()
	defer nursery.eventListenersLock.RUnlock()
	if listener, ok := nursery.eventListeners[id]; ok {
		updates := listener.Get()
		return updates, func() {
			listener.Remove(updates)
		}
	}
	return nil, func() {}
}

func (nursery *Nursery) Init() error {
	logger.Info("Starting nursery")

	nursery.Blocks = nursery.startBlockListener()
	nursery.startSwapListener()

	return nursery.recoverSwaps()
}

func (nursery *Nursery) Stop() {
	nursery.cancel()
	if err := nursery.boltzWs.Close(); err != nil {
		logger.Errorf("Could not close boltz websocket: %v", err)
	}
	nursery.waitGroup.Wait()
	nursery.eventListenersLock.RLock()
	ids := make([]string, 0, len(nursery.eventListeners))
	for id := range nursery.eventListeners {
		ids = append(ids, id)
	}
	nursery.eventListenersLock.RUnlock()
	for _, id := range ids {
		nursery.removeSwapListener(id)
	}
	logger.Debugf("Closed all event listeners")
}

func (nursery *Nursery) addSwapListeners(swapIds []string) {
	nursery.eventListenersLock.Lock()
	defer nursery.eventListenersLock.Unlock()
	for _, id := range swapIds {
		if _, ok := nursery.eventListeners[id]; !ok {
			nursery.eventListeners[id] = utils.ForwardChannel(make(chan SwapUpdate), swapListenerBuffer)
		}
	}
}

func (nursery *Nursery) registerSwaps(swapIds []string) error {
	if len(swapIds) == 0 {
		return nil
	}
	nursery.addSwapListeners(swapIds)
	return nursery.boltzWs.Subscribe(swapIds)
}

func (nursery *Nursery) recoverSwaps() error {
	logger.Info("Recovering Swaps")

	sendSwaps, err := nursery.database.QueryOngoingSendSwaps()
	if err != nil {
		return err
	}
	receiveSwaps, err := nursery.database.QueryOngoingReceiveSwaps()
	if err != nil {
		return err
	}

	var swapIds []string
	for _, swap := range sendSwaps {
		swapIds = append(swapIds, swap.Id)
	}
	for _, swap := range receiveSwaps {
		swapIds = append(swapIds, swap.Id)
	}

	if err := nursery.registerSwaps(swapIds); err != nil {
		// the swaps stay in the database and are subscribed again on the next start
		logger.Warnf("Could not subscribe to %d ongoing swaps: %v", len(swapIds), err)
	}
	return nil
}

func (nursery *Nursery) processUpdate(status boltz.SwapUpdate) error {
	nursery.updateLock.Lock()
	defer nursery.updateLock.Unlock()

	if status.Error != "" {
		return fmt.Errorf("boltz could not find Swap %s: %s", status.Id, status.Error)
	}

	sendSwap, err := nursery.database.QuerySendSwap(status.Id)
	if err == nil {
		nursery.handleSendSwapStatus(sendSwap, status.SwapStatusResponse)
		return nil
	} else if !errors.Is(err, database.ErrSwapNotFound) {
		return fmt.Errorf("could not query swap %s: %w", status.Id, err)
	}

	receiveSwap, err := nursery.database.QueryReceiveSwap(status.Id)
	if err != nil {
		return fmt.Errorf("could not query swap %s: %w", status.Id, err)
	}
	nursery.handleReceiveSwapStatus(receiveSwap, status.SwapStatusResponse)
	return nil
}

func (nursery *Nursery) startSwapListener() {
	logger.Infof("Starting swap update listener")

	nursery.waitGroup.Add(1)

	go func() {
		defer nursery.waitGroup.Done()
		for status := range nursery.boltzWs.Updates {
			logger.Debugf("Swap %s status update: %s", status.Id, status.Status)
			if err := nursery.processUpdate(status); err != nil {
				logger.Errorf("Could not process swap update: %v", err)
			}
		}
	}()
}

func (nursery *Nursery) removeSwapListener(id string) {
	nursery.eventListenersLock.Lock()
	defer nursery.eventListenersLock.Unlock()
	if listener, ok := nursery.eventListeners[id]; ok {
		listener.Close()
		delete(nursery.eventListeners, id)
	}
}

// emitPayment notifies the sdk listeners about the current state of the payment belonging to a swap
func (nursery *Nursery) emitPayment(swapId string, hasClaimTx bool, hasRefundTx bool) {
	if nursery.emit == nil {
		return
	}
	payment, err := nursery.database.QuerySwapPayment(swapId)
	if err != nil {
		logger.Warnf("Could not query payment of swap %s: %v", swapId, err)
		return
	}
	if event := models.PaymentEvent(*payment, hasClaimTx, hasRefundTx); event != nil {
		nursery.emit(event)
	}
}

type Output struct {
	*boltz.OutputDetails
	outputArgs onchain.OutputArgs

	setTransaction func(transactionId string, fee uint64) error
	setError       func(err error)
}

func (nursery *Nursery) createTransaction(outputs []*Output, feeRate float64) (id string, err error) {
	logger.Debugf("Creating tx for %d outputs", len(outputs))

	outputs, details := nursery.populateOutputs(outputs)
	if len(details) == 0 {
		return "", errors.New("all outputs invalid")
	}

	logger.Debugf("Got %d valid outputs", len(outputs))

	results := make(boltz.Results)

	handleErr := func(err error) (string, error) {
		for _, output := range outputs {
			results.SetErr(output.SwapId, err)
			if err := results[output.SwapId].Err; err != nil {
				output.setError(err)
			}
		}
		return id, err
	}

	logger.Infof("Using fee of %v sat/vbyte for transaction", feeRate)

	transaction, results, err := boltz.ConstructTransaction(nursery.network, details, boltz.FeeRate(feeRate), nursery.boltz)
	if err != nil {
		return handleErr(fmt.Errorf("construct: %w", err))
	}

	logger.Debugf("Constructed tx, broadcasting")

	id, err = nursery.onchain.BroadcastTransaction(transaction)
	if err != nil {
		return handleErr(fmt.Errorf("broadcast: %w", err))
	}
	logger.Infof("Broadcast transaction: %s", id)

	for _, output := range outputs {
		result := results[output.SwapId]
		if result.Err == nil {
			if err := output.setTransaction(id, result.Fee); err != nil {
				logger.Errorf("Could not set transaction id for %s swap %s: %s", output.SwapType, output.SwapId, err)
			}
		}
	}

	return handleErr(nil)
}

func (nursery *Nursery) populateOutputs(outputs []*Output) (valid []*Output, details []boltz.OutputDetails) {
	var walletAddress string
	for _, output := range outputs {
		handleErr := func(err error) {
			verb := "claim"
			if output.IsRefund() {
				verb = "refund"
			}
			logger.Warnf("swap %s can not be %sed automatically: %s", output.SwapId, verb, err)
			output.setError(err)
		}
		if output.Address == "" {
			if walletAddress == "" {
				address, err := nursery.wallet.NewAddress()
				if err != nil {
					handleErr(fmt.Errorf("could not get address from wallet: %w", err))
					continue
				}
				walletAddress = address
			}
			output.Address = walletAddress
		}
		result, err := nursery.onchain.FindOutput(output.outputArgs)
		if err != nil {
			handleErr(err)
			continue
		}
		output.LockupTransaction = result.Transaction
		output.Vout = result.Vout
		valid = append(valid, output)
		details = append(details, *output.OutputDetails)
	}
	return
}
