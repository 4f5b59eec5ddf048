package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/utils"
	"github.com/breez/breez-liquid-sdk-go/pkg/liquidsdk"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/jessevdk/go-flags"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	EnvPrefix = "BREEZ_LIQUID"

	defaultConfigFile = "liquid-sdk.toml"
	defaultLogFile    = "liquid-sdk.log"
	defaultPhraseFile = "phrase"
)

type Config struct {
	DataDir string `short:"d" long:"datadir" description:"Data directory of the sdk" toml:"-" envconfig:"DATADIR"`

	ConfigFile string `short:"c" long:"configfile" description:"Path to configuration file" toml:"-" envconfig:"CONFIGFILE"`
	PhraseFile string `long:"phrasefile" description:"Path to the file holding the mnemonic" toml:"phrasefile" envconfig:"PHRASEFILE"`

	LogFile    string `short:"l" long:"logfile" description:"Path to the log file" toml:"logfile" envconfig:"LOGFILE"`
	LogLevel   string `long:"loglevel" description:"Log level (fatal, error, warn, info, debug, silly)" toml:"loglevel" envconfig:"LOGLEVEL"`
	LogMaxSize int    `long:"logmaxsize" description:"Maximum size of the log file in megabytes before it gets rotated" toml:"logmaxsize" envconfig:"LOGMAXSIZE"`
	LogMaxAge  int    `long:"logmaxage" description:"Maximum age of old log files in days before they get deleted" toml:"logmaxage" envconfig:"LOGMAXAGE"`
	Verbose    bool   `short:"v" long:"verbose" description:"Print log lines to stderr as well" toml:"verbose" envconfig:"VERBOSE"`

	Log logger.Options `toml:"-" ignored:"true" no-flag:"true"`

	Network string `short:"n" long:"network" description:"Network to use (liquid, liquid-testnet)" toml:"network" envconfig:"NETWORK"`

	BoltzUrl    string `long:"boltz" description:"Boltz API URL" toml:"boltz" envconfig:"BOLTZ_URL"`
	ElectrumUrl string `long:"electrum" description:"Liquid electrum server to sync from, defaults to the one of the network" toml:"electrum" envconfig:"ELECTRUM_URL"`
	ElectrumSSL bool   `long:"electrum-ssl" description:"Whether the electrum server uses ssl" toml:"electrum-ssl" envconfig:"ELECTRUM_SSL"`
	MempoolUrl  string `long:"mempool" description:"mempool.space liquid instance to sync from, defaults to the one of the network" toml:"mempool" envconfig:"MEMPOOL_URL"`

	PaymentTimeoutSec uint64        `long:"payment-timeout" description:"Seconds to wait for a sent payment before returning" toml:"payment-timeout" envconfig:"PAYMENT_TIMEOUT"`
	SyncInterval      time.Duration `long:"sync-interval" description:"Interval of the background wallet sync" toml:"sync-interval" envconfig:"SYNC_INTERVAL"`

	ZeroConfMinFeeRate   float64 `long:"zero-conf-min-feerate" description:"Minimal feerate in sat/vbyte of lockups claimed before they confirm" toml:"zero-conf-min-feerate" envconfig:"ZERO_CONF_MIN_FEERATE"`
	ZeroConfMaxAmountSat uint64  `long:"zero-conf-max-amount" description:"Largest lockup in sats claimed before it confirms; 0 for no limit" toml:"zero-conf-max-amount" envconfig:"ZERO_CONF_MAX_AMOUNT"`

	ClaimFeerate float64 `long:"claim-feerate" description:"Feerate in sat/vbyte of claim transactions" toml:"claim-feerate" envconfig:"CLAIM_FEERATE"`
}

func defaultConfig(dataDir string) Config {
	network := models.LiquidTestnet
	sdkConfig := liquidsdk.DefaultConfig(network)
	return Config{
		DataDir: dataDir,

		LogLevel:   "info",
		LogMaxSize: 5,
		LogMaxAge:  30,

		Network: network.String(),

		ElectrumSSL:          sdkConfig.ElectrumSSL,
		PaymentTimeoutSec:    sdkConfig.PaymentTimeoutSec,
		SyncInterval:         sdkConfig.SyncInterval,
		ZeroConfMinFeeRate:   sdkConfig.ZeroConfMinFeeRate,
		ClaimFeerate:         sdkConfig.LiquidClaimTxFeerate,
		ZeroConfMaxAmountSat: 0,
	}
}

// LoadConfig reads the config file, then the environment and finally the command line flags, each overriding
// the previous. It returns the arguments it did not consume.
func LoadConfig(dataDir string, args []string) (*Config, []string, error) {
	cfg := defaultConfig(dataDir)

	// the environment may point to another data dir or config file
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, nil, fmt.Errorf("could not read environment: %w", err)
	}

	parser := flags.NewParser(&cfg, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, nil, fmt.Errorf("could not parse arguments: %w", err)
	}

	cfg.DataDir = utils.ExpandHomeDir(cfg.DataDir)
	cfg.ConfigFile = utils.ExpandDefaultPath(cfg.DataDir, utils.ExpandHomeDir(cfg.ConfigFile), defaultConfigFile)

	if utils.FileExists(cfg.ConfigFile) {
		if _, err := toml.DecodeFile(cfg.ConfigFile, &cfg); err != nil {
			return nil, nil, fmt.Errorf("could not read config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, nil, fmt.Errorf("could not read environment: %w", err)
	}

	// parse a second time to ensure cli flags go over config values
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, fmt.Errorf("could not parse arguments: %w", err)
	}

	network, err := models.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, nil, err
	}
	cfg.Network = network.String()

	cfg.PhraseFile = utils.ExpandDefaultPath(cfg.DataDir, utils.ExpandHomeDir(cfg.PhraseFile), defaultPhraseFile)
	cfg.LogFile = utils.ExpandDefaultPath(cfg.DataDir, utils.ExpandHomeDir(cfg.LogFile), defaultLogFile)
	cfg.Log = logger.Options{
		Level: cfg.LogLevel,
		Logger: &lumberjack.Logger{
			Filename: cfg.LogFile,
			MaxAge:   cfg.LogMaxAge,
			MaxSize:  cfg.LogMaxSize,
		},
		Quiet: !cfg.Verbose,
	}

	if err := utils.CreateDirIfNotExists(cfg.DataDir); err != nil {
		return nil, nil, fmt.Errorf("could not create data directory: %w", err)
	}

	return &cfg, rest, nil
}

// SdkConfig converts the loaded values to the config of an sdk instance. Urls that were not configured fall
// back to the defaults of the network.
func (cfg *Config) SdkConfig() (liquidsdk.Config, error) {
	network, err := models.ParseNetwork(cfg.Network)
	if err != nil {
		return liquidsdk.Config{}, err
	}
	sdkConfig := liquidsdk.DefaultConfig(network)
	sdkConfig.WorkingDir = cfg.DataDir
	if cfg.BoltzUrl != "" {
		sdkConfig.BoltzUrl = cfg.BoltzUrl
	}
	if cfg.ElectrumUrl != "" {
		sdkConfig.ElectrumUrl = cfg.ElectrumUrl
		sdkConfig.ElectrumSSL = cfg.ElectrumSSL
	}
	if cfg.MempoolUrl != "" {
		sdkConfig.MempoolUrl = cfg.MempoolUrl
	}
	if cfg.PaymentTimeoutSec != 0 {
		sdkConfig.PaymentTimeoutSec = cfg.PaymentTimeoutSec
	}
	if cfg.SyncInterval != 0 {
		sdkConfig.SyncInterval = cfg.SyncInterval
	}
	sdkConfig.ZeroConfMinFeeRate = cfg.ZeroConfMinFeeRate
	if cfg.ZeroConfMaxAmountSat != 0 {
		maxAmount := cfg.ZeroConfMaxAmountSat
		sdkConfig.ZeroConfMaxAmountSat = &maxAmount
	}
	if cfg.ClaimFeerate != 0 {
		sdkConfig.LiquidClaimTxFeerate = cfg.ClaimFeerate
	}
	return sdkConfig, nil
}

var ErrNoPhrase = errors.New("no mnemonic found")

// ReadPhrase returns the mnemonic stored in the phrase file
func (cfg *Config) ReadPhrase() (string, error) {
	if !utils.FileExists(cfg.PhraseFile) {
		return "", ErrNoPhrase
	}
	raw, err := os.ReadFile(cfg.PhraseFile)
	if err != nil {
		return "", fmt.Errorf("could not read phrase file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (cfg *Config) WritePhrase(mnemonic string) error {
	if err := utils.CreateDirIfNotExists(filepath.Dir(cfg.PhraseFile)); err != nil {
		return err
	}
	return os.WriteFile(cfg.PhraseFile, []byte(mnemonic+"\n"), 0600)
}

// Dump encodes the values that can be set in the config file
func (cfg *Config) Dump() (string, error) {
	var buffer strings.Builder
	if err := toml.NewEncoder(&buffer).Encode(cfg); err != nil {
		return "", err
	}
	return buffer.String(), nil
}
