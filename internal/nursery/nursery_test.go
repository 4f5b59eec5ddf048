package nursery

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/database"
	onchainmock "github.com/breez/breez-liquid-sdk-go/internal/mocks/onchain"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/breez/breez-liquid-sdk-go/internal/test"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/stretchr/testify/require"
)

type testNursery struct {
	*Nursery
	provider *onchainmock.MockHistoryProvider
	wallet   *onchainmock.MockWallet
	db       *database.Database
	events   []models.SdkEvent
}

func setup(t *testing.T, boltzUrl string) *testNursery {
	test.InitLogger()
	provider := onchainmock.NewMockHistoryProvider(t)
	wallet := onchainmock.NewMockWallet(t)
	chain := &onchain.Onchain{
		Provider: provider,
		Network:  boltz.Regtest,
	}
	db := test.InMemoryDatabase(t)

	result := &testNursery{provider: provider, wallet: wallet, db: db}
	result.Nursery = New(
		boltz.Regtest,
		chain,
		wallet,
		&boltz.Api{URL: boltzUrl},
		db,
		0.1,
		func(event models.SdkEvent) {
			result.events = append(result.events, event)
		},
	)
	return result
}

func update(id string, status boltz.SwapUpdateEvent) boltz.SwapUpdate {
	return boltz.SwapUpdate{
		Id:                 id,
		SwapStatusResponse: boltz.SwapStatusResponse{Status: status.String()},
	}
}

func listen(t *testing.T, nursery *testNursery, id string) <-chan SwapUpdate {
	nursery.addSwapListeners([]string{id})
	updates, stop := nursery.SwapUpdates(id)
	require.NotNil(t, updates)
	t.Cleanup(stop)
	return updates
}

func waitForUpdate(t *testing.T, updates <-chan SwapUpdate) SwapUpdate {
	select {
	case update := <-updates:
		return update
	case <-time.After(time.Second):
		require.Fail(t, "no swap update received")
	}
	return SwapUpdate{}
}

func sendSwap(id string, state models.PaymentState) models.SendSwap {
	return models.SendSwap{
		Id:                id,
		PaymentHash:       make([]byte, 32),
		PayerAmountSat:    1100,
		ReceiverAmountSat: 1000,
		State:             state,
		CreateResponse: &boltz.CreateSwapResponse{
			Id:                 id,
			Address:            "lockup-address",
			ExpectedAmount:     1050,
			TimeoutBlockHeight: 100,
		},
	}
}

func TestReceiveSwapFailed(t *testing.T) {
	nursery := setup(t, "")
	test.FakeSwaps{ReceiveSwaps: []models.ReceiveSwap{{Id: "receive", State: models.Created}}}.Create(t, nursery.db)

	updates := listen(t, nursery, "receive")
	require.NoError(t, nursery.processUpdate(update("receive", boltz.SwapExpired)))

	swap, err := nursery.db.QueryReceiveSwap("receive")
	require.NoError(t, err)
	require.Equal(t, models.Failed, swap.State)

	received := waitForUpdate(t, updates)
	require.True(t, received.IsFinal)
	require.Equal(t, models.Failed, received.ReceiveSwap.State)

	require.Len(t, nursery.events, 1)
	require.IsType(t, models.SdkEventPaymentFailed{}, nursery.events[0])
}

func TestUnknownSwap(t *testing.T) {
	nursery := setup(t, "")
	require.ErrorIs(t, nursery.processUpdate(update("unknown", boltz.SwapExpired)), database.ErrSwapNotFound)
}

func TestSendSwapLockup(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		nursery := setup(t, "")
		test.FakeSwaps{SendSwaps: []models.SendSwap{sendSwap("send", models.Created)}}.Create(t, nursery.db)

		nursery.provider.On("EstimateFee").Return(0.2, nil)
		nursery.wallet.On("SendToAddress", onchain.WalletSendArgs{
			Address:     "lockup-address",
			Amount:      1050,
			SatPerVbyte: 0.2,
		}).Return("lockup", nil)

		updates := listen(t, nursery, "send")
		require.NoError(t, nursery.processUpdate(update("send", boltz.InvoiceSet)))

		swap, err := nursery.db.QuerySendSwap("send")
		require.NoError(t, err)
		require.Equal(t, models.Pending, swap.State)
		require.Equal(t, "lockup", swap.LockupTxId)

		received := waitForUpdate(t, updates)
		require.NoError(t, received.Err)
		require.False(t, received.IsFinal)
		require.Equal(t, boltz.InvoiceSet, received.Status)

		require.Len(t, nursery.events, 1)
		require.IsType(t, models.SdkEventPaymentPending{}, nursery.events[0])

		// a second invoice.set must not lock up again
		require.NoError(t, nursery.processUpdate(update("send", boltz.InvoiceSet)))
		nursery.wallet.AssertNumberOfCalls(t, "SendToAddress", 1)
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		nursery := setup(t, "")
		test.FakeSwaps{SendSwaps: []models.SendSwap{sendSwap("send", models.Created)}}.Create(t, nursery.db)

		nursery.provider.On("EstimateFee").Return(0.1, nil)
		nursery.wallet.On("SendToAddress", onchain.WalletSendArgs{
			Address:     "lockup-address",
			Amount:      1050,
			SatPerVbyte: 0.1,
		}).Return("", onchain.InsufficientBalanceError(1050))

		updates := listen(t, nursery, "send")
		require.NoError(t, nursery.processUpdate(update("send", boltz.InvoiceSet)))

		swap, err := nursery.db.QuerySendSwap("send")
		require.NoError(t, err)
		require.Equal(t, models.Failed, swap.State)

		received := waitForUpdate(t, updates)
		require.True(t, received.IsFinal)
		require.ErrorIs(t, received.Err, models.ErrPaymentErrorInsufficientFunds)
	})
}

func TestSendSwapFailedBeforeLockup(t *testing.T) {
	nursery := setup(t, "")
	test.FakeSwaps{SendSwaps: []models.SendSwap{sendSwap("send", models.Created)}}.Create(t, nursery.db)

	updates := listen(t, nursery, "send")
	require.NoError(t, nursery.processUpdate(update("send", boltz.InvoiceFailedToPay)))

	swap, err := nursery.db.QuerySendSwap("send")
	require.NoError(t, err)
	require.Equal(t, models.Failed, swap.State)

	received := waitForUpdate(t, updates)
	require.Error(t, received.Err)
	require.True(t, received.IsFinal)
}

func TestSendSwapFinal(t *testing.T) {
	nursery := setup(t, "")
	test.FakeSwaps{SendSwaps: []models.SendSwap{sendSwap("send", models.Complete)}}.Create(t, nursery.db)

	// the wallet mock fails the test on any call
	require.NoError(t, nursery.processUpdate(update("send", boltz.InvoiceSet)))
	require.Empty(t, nursery.events)
}

func TestCooperativeClaimWrongPreimage(t *testing.T) {
	preimage, _ := test.Preimage(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/swap/submarine/send/claim", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{
			"preimage":        hex.EncodeToString(preimage),
			"pubNonce":        hex.EncodeToString(make([]byte, 66)),
			"transactionHash": hex.EncodeToString(make([]byte, 32)),
		}))
	}))
	t.Cleanup(server.Close)

	nursery := setup(t, server.URL)
	swap := sendSwap("send", models.Pending)
	swap.LockupTxId = "lockup"
	test.FakeSwaps{SendSwaps: []models.SendSwap{swap}}.Create(t, nursery.db)

	updates := listen(t, nursery, "send")
	require.NoError(t, nursery.processUpdate(update("send", boltz.TransactionClaimPending)))

	received := waitForUpdate(t, updates)
	require.ErrorIs(t, received.Err, models.ErrPaymentErrorInvalidPreimage)

	stored, err := nursery.db.QuerySendSwap("send")
	require.NoError(t, err)
	require.Equal(t, models.Pending, stored.State)
	require.Empty(t, stored.Preimage)
}

func TestUpdateSwapState(t *testing.T) {
	nursery := setup(t, "")
	test.FakeSwaps{
		ReceiveSwaps: []models.ReceiveSwap{{Id: "receive", State: models.Pending, ClaimTxId: "claim"}},
		SendSwaps:    []models.SendSwap{sendSwap("send", models.Complete)},
	}.Create(t, nursery.db)

	receiveSwap, err := nursery.db.QueryReceiveSwap("receive")
	require.NoError(t, err)
	require.NoError(t, nursery.UpdateReceiveSwapState(receiveSwap, models.Complete))
	require.Len(t, nursery.events, 1)
	require.IsType(t, models.SdkEventPaymentSucceeded{}, nursery.events[0])

	completed, err := nursery.db.QuerySendSwap("send")
	require.NoError(t, err)
	err = nursery.UpdateSendSwapState(completed, models.Pending)
	require.ErrorIs(t, err, models.ErrPaymentErrorGeneric)
	require.Len(t, nursery.events, 1)
}

func TestCheckRefundableSwaps(t *testing.T) {
	nursery := setup(t, "")
	notLockedUp := sendSwap("created", models.Created)
	refunded := sendSwap("refunded", models.Pending)
	refunded.LockupTxId = "lockup"
	refunded.RefundTxId = "refund"
	notExpired := sendSwap("pending", models.Pending)
	notExpired.LockupTxId = "lockup"
	test.FakeSwaps{SendSwaps: []models.SendSwap{notLockedUp, refunded, notExpired}}.Create(t, nursery.db)

	// none of the swaps is refundable at this height, so the chain is never queried
	require.NoError(t, nursery.checkRefundableSwaps(99))
}

func TestClaimAlreadyClaimed(t *testing.T) {
	nursery := setup(t, "")
	err := nursery.claimReceiveSwap(&models.ReceiveSwap{Id: "receive", ClaimTxId: "claim"}, "", boltz.UnknownEvent)
	require.True(t, errors.Is(err, models.ErrPaymentErrorAlreadyClaimed))
}
