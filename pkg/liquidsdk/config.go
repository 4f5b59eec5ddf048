package liquidsdk

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/utils"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
)

const (
	defaultWorkingDir        = ".data"
	defaultPaymentTimeoutSec = 15
	defaultSyncInterval      = 30 * time.Second

	// sat/vbyte
	defaultClaimTxFeerate     = 0.1
	defaultZeroConfMinFeeRate = 0.1

	storageFileName = "storage.sql"
	backupFileName  = "backup.sql"
	cacheDirName    = "enc_cache"
)

type Config struct {
	Network     models.Network
	BoltzUrl    string
	ElectrumUrl string
	ElectrumSSL bool
	// base url of a mempool or esplora instance, the api lives under /api
	MempoolUrl string
	WorkingDir string

	PaymentTimeoutSec uint64
	// interval of the background wallet sync
	SyncInterval time.Duration

	ZeroConfMinFeeRate   float64
	ZeroConfMaxAmountSat *uint64

	LiquidClaimTxFeerate float64
}

func DefaultConfig(network models.Network) Config {
	boltzNetwork := boltz.TestNet
	if network.IsMainnet() {
		boltzNetwork = boltz.MainNet
	}
	return Config{
		Network:              network,
		BoltzUrl:             boltzNetwork.DefaultBoltzUrl,
		ElectrumUrl:          boltzNetwork.DefaultElectrumUrl,
		ElectrumSSL:          true,
		MempoolUrl:           boltzNetwork.MempoolUrl,
		WorkingDir:           defaultWorkingDir,
		PaymentTimeoutSec:    defaultPaymentTimeoutSec,
		SyncInterval:         defaultSyncInterval,
		ZeroConfMinFeeRate:   defaultZeroConfMinFeeRate,
		LiquidClaimTxFeerate: defaultClaimTxFeerate,
	}
}

func (config *Config) boltzNetwork() (*boltz.Network, error) {
	network, err := boltz.ParseChain(string(config.Network))
	if err != nil {
		return nil, fmt.Errorf("invalid network: %w", err)
	}
	return network, nil
}

// networkDir keeps the data of different networks apart
func (config *Config) networkDir() string {
	workingDir := config.WorkingDir
	if workingDir == "" {
		workingDir = defaultWorkingDir
	}
	return filepath.Join(utils.ExpandHomeDir(workingDir), string(config.Network))
}

func (config *Config) paymentTimeout() time.Duration {
	if config.PaymentTimeoutSec == 0 {
		return defaultPaymentTimeoutSec * time.Second
	}
	return time.Duration(config.PaymentTimeoutSec) * time.Second
}

func (config *Config) syncInterval() time.Duration {
	if config.SyncInterval == 0 {
		return defaultSyncInterval
	}
	return config.SyncInterval
}

// acceptsZeroConf decides whether a lockup of amount may be claimed before it confirms
func (config *Config) acceptsZeroConf(amount uint64, feeRate float64) bool {
	if config.ZeroConfMaxAmountSat != nil && amount > *config.ZeroConfMaxAmountSat {
		return false
	}
	return feeRate >= config.ZeroConfMinFeeRate
}
