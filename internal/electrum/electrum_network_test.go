//go:build !unit

package electrum_test

import (
	"testing"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/electrum"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/stretchr/testify/require"
)

func client(t *testing.T) *electrum.Client {
	client, err := electrum.NewClient(onchain.ElectrumOptions{Url: boltz.TestNet.DefaultElectrumUrl, SSL: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Disconnect()
	})
	return client
}

func TestGetBlockHeight(t *testing.T) {
	client := client(t)
	require.Eventually(t, func() bool {
		height, err := client.GetBlockHeight()
		return err == nil && height > 0
	}, 10*time.Second, 100*time.Millisecond)
}

func TestEstimateFee(t *testing.T) {
	client := client(t)
	_, err := client.EstimateFee()
	require.NoError(t, err)
}

func TestGetScriptHistoryEmpty(t *testing.T) {
	client := client(t)
	history, err := client.GetScriptHistory([]byte{0x6a, 0x01, 0x42})
	require.NoError(t, err)
	require.Empty(t, history)
}
