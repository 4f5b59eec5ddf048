// Package liquidsdk is a self-custodial lightning wallet on top of Liquid. Lightning payments are sent and received
// with Boltz swaps, the funds stay in a single-sig Liquid wallet derived from the mnemonic.
package liquidsdk

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/breez/breez-liquid-sdk-go/internal/database"
	"github.com/breez/breez-liquid-sdk-go/internal/electrum"
	"github.com/breez/breez-liquid-sdk-go/internal/esplora"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/nursery"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/breez/breez-liquid-sdk-go/internal/utils"
	"github.com/breez/breez-liquid-sdk-go/internal/wallet"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

type LiquidSdk struct {
	config Config

	network  *boltz.Network
	signer   *wallet.Signer
	wallet   *wallet.Wallet
	onchain  *onchain.Onchain
	boltz    *boltz.Api
	database *database.Database
	nursery  *nursery.Nursery

	eventListeners     map[string]models.EventListener
	eventListenersLock sync.RWMutex

	// held by Start and Disconnect, read by every other call
	startLock sync.RWMutex
	started   bool
	cancel    func()
	waitGroup sync.WaitGroup

	syncLock sync.Mutex

	boltzVersionLock    sync.Mutex
	boltzVersionChecked bool
}

// New creates an sdk instance that has to be started before use
func New(config Config) *LiquidSdk {
	return &LiquidSdk{
		config:         config,
		eventListeners: make(map[string]models.EventListener),
	}
}

// Connect starts an sdk with the default config of the requested network
func Connect(ctx context.Context, request models.ConnectRequest) (*LiquidSdk, error) {
	config := DefaultConfig(request.Network)
	if request.DataDir != nil {
		config.WorkingDir = *request.DataDir
	}
	return ConnectWithConfig(ctx, config, request.Mnemonic)
}

func ConnectWithConfig(ctx context.Context, config Config, mnemonic string) (*LiquidSdk, error) {
	sdk := New(config)
	if err := sdk.Start(ctx, mnemonic); err != nil {
		return nil, err
	}
	return sdk, nil
}

func (sdk *LiquidSdk) chainProvider(boltzApi *boltz.Api) onchain.HistoryProvider {
	var providers []onchain.HistoryProvider
	if sdk.config.ElectrumUrl != "" {
		client, err := electrum.NewClient(onchain.ElectrumOptions{
			Url: sdk.config.ElectrumUrl,
			SSL: sdk.config.ElectrumSSL,
		})
		if err != nil {
			logger.Warnf("Could not connect to electrum server %s: %v", sdk.config.ElectrumUrl, err)
		} else {
			logger.Info("Using electrum server " + sdk.config.ElectrumUrl)
			providers = append(providers, client)
		}
	}
	if sdk.config.MempoolUrl != "" {
		providers = append(providers, esplora.InitClient(sdk.config.MempoolUrl+"/api"))
	}
	return onchain.MultiChainProvider{
		Providers: providers,
		Boltz:     onchain.NewBoltzChainProvider(boltzApi),
	}
}

// Start opens the storage of the wallet, starts tracking ongoing swaps and runs an initial sync.
func (sdk *LiquidSdk) Start(ctx context.Context, mnemonic string) error {
	sdk.startLock.Lock()
	defer sdk.startLock.Unlock()

	if sdk.started {
		return models.NewSdkError(models.ErrSdkErrorAlreadyStarted, "")
	}

	network, err := sdk.config.boltzNetwork()
	if err != nil {
		return models.NewSdkError(models.ErrSdkErrorGeneric, "%v", err)
	}
	signer, err := wallet.NewSigner(mnemonic, network)
	if err != nil {
		return models.NewSdkError(models.ErrSdkErrorGeneric, "%v", err)
	}

	dataDir := sdk.config.networkDir()
	if err := utils.CreateDirIfNotExists(dataDir); err != nil {
		return models.NewSdkError(models.ErrSdkErrorGeneric, "could not create data directory: %v", err)
	}

	db := &database.Database{Path: filepath.Join(dataDir, storageFileName)}
	if err := db.Connect(); err != nil {
		return models.NewSdkError(models.ErrSdkErrorGeneric, "could not open database: %v", err)
	}

	boltzApi := &boltz.Api{URL: sdk.config.BoltzUrl}
	chain := &onchain.Onchain{
		Provider: sdk.chainProvider(boltzApi),
		Network:  network,
	}

	liquidWallet, err := wallet.New(signer, chain, filepath.Join(dataDir, cacheDirName))
	if err != nil {
		chain.Disconnect()
		_ = db.Close()
		return models.NewSdkError(models.ErrSdkErrorGeneric, "could not load wallet: %v", err)
	}

	swapNursery := nursery.New(network, chain, liquidWallet, boltzApi, db, sdk.config.LiquidClaimTxFeerate, sdk.notify)
	swapNursery.AcceptZeroConf = sdk.config.acceptsZeroConf
	if err := swapNursery.Init(); err != nil {
		swapNursery.Stop()
		chain.Disconnect()
		_ = db.Close()
		return models.NewSdkError(models.ErrSdkErrorGeneric, "could not start swap tracking: %v", err)
	}

	sdk.network = network
	sdk.signer = signer
	sdk.wallet = liquidWallet
	sdk.onchain = chain
	sdk.boltz = boltzApi
	sdk.database = db
	sdk.nursery = swapNursery
	sdk.started = true

	loopCtx, cancel := context.WithCancel(context.Background())
	sdk.cancel = cancel

	logger.Infof("Started sdk on %s with pubkey %s", network.Name, signer.Pubkey())

	if err := sdk.sync(ctx); err != nil {
		logger.Warnf("Initial sync failed: %v", err)
	}

	sdk.waitGroup.Add(1)
	go sdk.syncLoop(loopCtx)

	return nil
}

// ensureStarted has to be called with the start lock held
func (sdk *LiquidSdk) ensureStarted() error {
	if !sdk.started {
		return models.NewSdkError(models.ErrSdkErrorNotStarted, "")
	}
	return nil
}

// Disconnect stops all background work and closes the storage. The instance can be started again.
func (sdk *LiquidSdk) Disconnect() error {
	sdk.startLock.Lock()
	defer sdk.startLock.Unlock()

	if err := sdk.ensureStarted(); err != nil {
		return err
	}

	sdk.cancel()
	sdk.nursery.Stop()
	sdk.waitGroup.Wait()

	var merr *multierror.Error
	if err := sdk.wallet.Disconnect(); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("could not persist wallet cache: %w", err))
	}
	sdk.onchain.Disconnect()
	if err := sdk.database.Close(); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("could not close database: %w", err))
	}
	sdk.started = false

	logger.Info("Disconnected sdk")
	if err := merr.ErrorOrNil(); err != nil {
		return models.SdkErrorFrom(err)
	}
	return nil
}

func (sdk *LiquidSdk) AddEventListener(listener models.EventListener) (string, error) {
	id := uuid.NewString()
	sdk.eventListenersLock.Lock()
	defer sdk.eventListenersLock.Unlock()
	sdk.eventListeners[id] = listener
	return id, nil
}

func (sdk *LiquidSdk) RemoveEventListener(id string) error {
	sdk.eventListenersLock.Lock()
	defer sdk.eventListenersLock.Unlock()
	delete(sdk.eventListeners, id)
	return nil
}

func (sdk *LiquidSdk) notify(event models.SdkEvent) {
	sdk.eventListenersLock.RLock()
	listeners := make([]models.EventListener, 0, len(sdk.eventListeners))
	for _, listener := range sdk.eventListeners {
		listeners = append(listeners, listener)
	}
	sdk.eventListenersLock.RUnlock()

	logger.Debugf("Emitting event %T to %d listeners", event, len(listeners))
	for _, listener := range listeners {
		listener.OnEvent(event)
	}
}

func (sdk *LiquidSdk) GetInfo(ctx context.Context, request models.GetInfoRequest) (*models.GetInfoResponse, error) {
	sdk.startLock.RLock()
	defer sdk.startLock.RUnlock()
	if err := sdk.ensureStarted(); err != nil {
		return nil, err
	}

	if request.WithScan {
		if err := sdk.sync(ctx); err != nil {
			return nil, models.SdkErrorFrom(err)
		}
	}

	payments, err := sdk.database.QueryPayments()
	if err != nil {
		return nil, models.SdkErrorFrom(err)
	}

	var confirmedReceived, confirmedSent, pendingSend, pendingReceive uint64
	for _, payment := range payments {
		switch payment.PaymentType {
		case models.Send:
			switch payment.Status {
			case models.Complete:
				confirmedSent += payment.AmountSat
			case models.Failed:
			default:
				pendingSend += payment.AmountSat
			}
		case models.Receive:
			switch payment.Status {
			case models.Complete:
				confirmedReceived += payment.AmountSat
			case models.Failed:
			default:
				pendingReceive += payment.AmountSat
			}
		}
	}

	var balance uint64
	if spent := confirmedSent + pendingSend; confirmedReceived > spent {
		balance = confirmedReceived - spent
	}

	return &models.GetInfoResponse{
		BalanceSat:        balance,
		PendingSendSat:    pendingSend,
		PendingReceiveSat: pendingReceive,
		Pubkey:            sdk.signer.Pubkey(),
	}, nil
}

// checkBoltzVersion refuses to create swaps with a backend that is too old. The check passes only once
// per instance since it needs a request to boltz. An unreachable boltz is reported as an *SdkError,
// an outdated one as a generic *PaymentError.
func (sdk *LiquidSdk) checkBoltzVersion() error {
	sdk.boltzVersionLock.Lock()
	defer sdk.boltzVersionLock.Unlock()
	if sdk.boltzVersionChecked {
		return nil
	}
	version, err := sdk.boltz.GetVersion()
	if err != nil {
		return models.NewSdkError(models.ErrSdkErrorServiceConnectivity, "could not get boltz version: %v", err)
	}
	if err := utils.CheckVersion("Boltz", version.Version, minBoltzVersion); err != nil {
		return models.PaymentErrorFrom(models.ErrPaymentErrorGeneric, err)
	}
	sdk.boltzVersionChecked = true
	return nil
}

const minBoltzVersion = "3.5.0"
