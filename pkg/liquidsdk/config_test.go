package liquidsdk

import (
	"path/filepath"
	"testing"

	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	mainnet := DefaultConfig(models.Liquid)
	require.Equal(t, boltz.MainNet.DefaultBoltzUrl, mainnet.BoltzUrl)
	require.Equal(t, boltz.MainNet.DefaultElectrumUrl, mainnet.ElectrumUrl)

	testnet := DefaultConfig(models.LiquidTestnet)
	require.Equal(t, boltz.TestNet.DefaultBoltzUrl, testnet.BoltzUrl)
	require.Equal(t, filepath.Join(defaultWorkingDir, "liquid-testnet"), testnet.networkDir())

	network, err := testnet.boltzNetwork()
	require.NoError(t, err)
	require.Equal(t, boltz.TestNet, network)

	invalid := Config{Network: "bitcoin"}
	_, err = invalid.boltzNetwork()
	require.Error(t, err)
}

func TestAcceptsZeroConf(t *testing.T) {
	maxAmount := uint64(100_000)
	config := Config{ZeroConfMinFeeRate: 0.1, ZeroConfMaxAmountSat: &maxAmount}

	require.True(t, config.acceptsZeroConf(50_000, 0.1))
	require.True(t, config.acceptsZeroConf(100_000, 1))
	require.False(t, config.acceptsZeroConf(50_000, 0.05))
	require.False(t, config.acceptsZeroConf(100_001, 1))

	config.ZeroConfMaxAmountSat = nil
	require.True(t, config.acceptsZeroConf(10_000_000, 0.1))
}
