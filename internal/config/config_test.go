package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/test"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

const testConfigFile = `
network = "liquid"
boltz = "https://file.example"
loglevel = "debug"
sync-interval = "1m"
zero-conf-max-amount = 50000
`

func writeConfigFile(t *testing.T, dataDir string) {
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, defaultConfigFile), []byte(testConfigFile), 0600))
}

func TestLoadConfigDefaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, rest, err := LoadConfig(dataDir, []string{"get-info", "--json"})
	require.NoError(t, err)
	require.Equal(t, []string{"get-info", "--json"}, rest)

	require.Equal(t, models.LiquidTestnet.String(), cfg.Network)
	require.Equal(t, filepath.Join(dataDir, defaultPhraseFile), cfg.PhraseFile)
	require.Equal(t, filepath.Join(dataDir, defaultLogFile), cfg.LogFile)
	require.True(t, cfg.Log.Quiet)
	require.Equal(t, cfg.LogFile, cfg.Log.Logger.(*lumberjack.Logger).Filename)

	sdkConfig, err := cfg.SdkConfig()
	require.NoError(t, err)
	require.Equal(t, boltz.TestNet.DefaultBoltzUrl, sdkConfig.BoltzUrl)
	require.Equal(t, boltz.TestNet.DefaultElectrumUrl, sdkConfig.ElectrumUrl)
	require.Equal(t, dataDir, sdkConfig.WorkingDir)
	require.Nil(t, sdkConfig.ZeroConfMaxAmountSat)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dataDir := t.TempDir()
	writeConfigFile(t, dataDir)

	t.Run("File", func(t *testing.T) {
		cfg, _, err := LoadConfig(dataDir, nil)
		require.NoError(t, err)
		require.Equal(t, models.Liquid.String(), cfg.Network)
		require.Equal(t, "https://file.example", cfg.BoltzUrl)
		require.Equal(t, "debug", cfg.Log.Level)
		require.Equal(t, time.Minute, cfg.SyncInterval)

		sdkConfig, err := cfg.SdkConfig()
		require.NoError(t, err)
		require.Equal(t, "https://file.example", sdkConfig.BoltzUrl)
		require.Equal(t, boltz.MainNet.DefaultElectrumUrl, sdkConfig.ElectrumUrl)
		require.Equal(t, uint64(50000), *sdkConfig.ZeroConfMaxAmountSat)
	})

	t.Run("Environment", func(t *testing.T) {
		t.Setenv(EnvPrefix+"_BOLTZ_URL", "https://env.example")
		t.Setenv(EnvPrefix+"_NETWORK", "testnet")

		cfg, _, err := LoadConfig(dataDir, nil)
		require.NoError(t, err)
		require.Equal(t, "https://env.example", cfg.BoltzUrl)
		require.Equal(t, models.LiquidTestnet.String(), cfg.Network)
	})

	t.Run("Flags", func(t *testing.T) {
		t.Setenv(EnvPrefix+"_BOLTZ_URL", "https://env.example")

		cfg, rest, err := LoadConfig(dataDir, []string{"--boltz", "https://flag.example", "--verbose", "sync"})
		require.NoError(t, err)
		require.Equal(t, "https://flag.example", cfg.BoltzUrl)
		require.False(t, cfg.Log.Quiet)
		require.Equal(t, []string{"sync"}, rest)
	})
}

func TestLoadConfigInvalid(t *testing.T) {
	_, _, err := LoadConfig(t.TempDir(), []string{"--network", "bitcoin"})
	require.Error(t, err)

	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, defaultConfigFile), []byte("network = "), 0600))
	_, _, err = LoadConfig(dataDir, nil)
	require.Error(t, err)
}

func TestPhrase(t *testing.T) {
	cfg, _, err := LoadConfig(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = cfg.ReadPhrase()
	require.ErrorIs(t, err, ErrNoPhrase)

	require.NoError(t, cfg.WritePhrase(test.WalletMnemonic))
	phrase, err := cfg.ReadPhrase()
	require.NoError(t, err)
	require.Equal(t, test.WalletMnemonic, phrase)

	info, err := os.Stat(cfg.PhraseFile)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestDump(t *testing.T) {
	cfg, _, err := LoadConfig(t.TempDir(), []string{"--boltz", "https://flag.example"})
	require.NoError(t, err)

	dumped, err := cfg.Dump()
	require.NoError(t, err)
	require.Contains(t, dumped, `boltz = "https://flag.example"`)
	require.NotContains(t, dumped, "datadir")
}
