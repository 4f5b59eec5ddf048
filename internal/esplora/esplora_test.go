package esplora

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := InitClient(server.URL + "/api/")
	t.Cleanup(client.Disconnect)
	return client
}

func TestInitClient(t *testing.T) {
	client := InitClient("https://liquid.network/liquidtestnet/api/")
	require.Equal(t, "https://liquid.network/liquidtestnet/api", client.api)
	require.NotNil(t, client.httpClient)
}

func TestScriptHash(t *testing.T) {
	// sha256 of the empty script
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ScriptHash(nil))
}

func TestGetRawTransaction(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tx/found/hex":
			fmt.Fprint(w, "0200000001\n")
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "Transaction not found")
		}
	})

	hex, err := client.GetRawTransaction("found")
	require.NoError(t, err)
	require.Equal(t, "0200000001", hex)

	_, err = client.GetRawTransaction("missing")
	require.ErrorContains(t, err, "status 404")
}

func TestGetBlockHeight(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/blocks/tip/height", r.URL.Path)
		fmt.Fprint(w, "1523412")
	})

	height, err := client.GetBlockHeight()
	require.NoError(t, err)
	require.Equal(t, uint32(1523412), height)
}

func TestBroadcastTransaction(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		if r.ContentLength == 4 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "sendrawtransaction RPC error")
			return
		}
		fmt.Fprint(w, "txid")
	})

	id, err := client.BroadcastTransaction("00000000")
	require.NoError(t, err)
	require.Equal(t, "txid", id)

	_, err = client.BroadcastTransaction("0000")
	require.ErrorContains(t, err, "could not broadcast tx")
}

func TestIsTransactionConfirmed(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"confirmed":true,"block_height":10,"block_time":1700000000}`)
	})

	confirmed, err := client.IsTransactionConfirmed("txid")
	require.NoError(t, err)
	require.True(t, confirmed)
}

func TestGetScriptHistory(t *testing.T) {
	script := []byte{0x00, 0x14}
	base := "/api/scripthash/" + ScriptHash(script) + "/txs"

	confirmedPage := func(prefix string, count int) string {
		var entries []string
		for i := 0; i < count; i++ {
			entries = append(entries, fmt.Sprintf(
				`{"txid":"%s%d","status":{"confirmed":true,"block_height":%d,"block_time":%d}}`,
				prefix, i, 100+i, 1700000000+i,
			))
		}
		return strings.Join(entries, ",")
	}

	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case base:
			fmt.Fprintf(w, `[{"txid":"mempool","status":{"confirmed":false}},%s]`, confirmedPage("a", chainPageSize))
		case base + "/chain/a24":
			fmt.Fprintf(w, `[%s]`, confirmedPage("b", 2))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	history, err := client.GetScriptHistory(script)
	require.NoError(t, err)
	require.Len(t, history, 1+chainPageSize+2)

	require.Equal(t, "mempool", history[0].TxId)
	require.False(t, history[0].IsConfirmed())
	require.Zero(t, history[0].Timestamp)

	require.Equal(t, "a0", history[1].TxId)
	require.Equal(t, int64(100), history[1].Height)
	require.Equal(t, uint32(1700000000), history[1].Timestamp)

	require.Equal(t, "b1", history[len(history)-1].TxId)
}
