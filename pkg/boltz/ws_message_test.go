package boltz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleTextMessage(t *testing.T) {
	api := Api{URL: "http://localhost:9001"}
	ws := api.NewWebsocket()

	message := `{
		"event": "update",
		"channel": "swap.update",
		"args": [
			{"id": "first", "status": "transaction.mempool", "transaction": {"id": "txid", "hex": "00"}},
			{"id": "second", "status": "invoice.failedToPay", "failureReason": "no route"}
		]
	}`
	require.NoError(t, ws.handleTextMessage([]byte(message)))

	first := <-ws.Updates
	require.Equal(t, "first", first.Id)
	require.Equal(t, TransactionMempool, ParseEvent(first.Status))
	require.Equal(t, "txid", first.Transaction.Id)

	second := <-ws.Updates
	require.Equal(t, "second", second.Id)
	require.Equal(t, "no route", second.FailureReason)

	require.Error(t, ws.handleTextMessage([]byte(`{"event": "update", "error": "swap not found"}`)))
	require.Error(t, ws.handleTextMessage([]byte(`not json`)))
}

func TestHandleSubscribeAck(t *testing.T) {
	api := Api{URL: "http://localhost:9001"}
	ws := api.NewWebsocket()

	ack := []byte(`{"event": "subscribe", "channel": "swap.update", "args": ["first"]}`)
	require.NoError(t, ws.handleTextMessage(ack))
	// an acknowledgement nobody waits for must not block the reader
	require.NoError(t, ws.handleTextMessage(ack))
	require.Len(t, ws.acks, 1)
}

func TestWebsocketUrl(t *testing.T) {
	tests := []struct {
		api      string
		expected string
	}{
		{"https://api.boltz.exchange", "wss://api.boltz.exchange/v2/ws"},
		{"https://api.boltz.exchange/", "wss://api.boltz.exchange/v2/ws"},
		{"http://localhost:9001", "ws://localhost:9001/v2/ws"},
	}
	for _, tc := range tests {
		t.Run(tc.api, func(t *testing.T) {
			wsUrl, err := websocketUrl(tc.api)
			require.NoError(t, err)
			require.Equal(t, tc.expected, wsUrl)
		})
	}
}
