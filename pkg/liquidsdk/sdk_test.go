package liquidsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/test"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

type fakeBoltz struct {
	version   string
	reverse   boltz.ReversePairs
	submarine boltz.SubmarinePairs
}

func (f *fakeBoltz) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var response any
		switch {
		case r.URL.Path == "/v2/version" && f.version != "":
			response = boltz.GetVersionResponse{Version: f.version}
		case r.URL.Path == "/v2/swap/reverse":
			response = f.reverse
		case r.URL.Path == "/v2/swap/submarine":
			response = f.submarine
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			response = map[string]string{"error": "unavailable"}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}
}

func testReversePair() boltz.ReversePair {
	pair := boltz.ReversePair{Hash: "reverse", Rate: 1}
	pair.Limits = boltz.Limits{Minimal: 1000, Maximal: 100_000}
	pair.Fees.Percentage = 0.25
	pair.Fees.MinerFees.Lockup = 27
	pair.Fees.MinerFees.Claim = 20
	return pair
}

func testConfig(t *testing.T, boltzUrl string) Config {
	config := DefaultConfig(models.LiquidTestnet)
	config.BoltzUrl = boltzUrl
	config.ElectrumUrl = ""
	config.MempoolUrl = ""
	config.WorkingDir = t.TempDir()
	config.SyncInterval = time.Hour
	return config
}

func setup(t *testing.T, backend *fakeBoltz) *LiquidSdk {
	test.InitLogger()
	if backend == nil {
		backend = &fakeBoltz{}
	}
	server := httptest.NewServer(backend.handler(t))
	t.Cleanup(server.Close)

	sdk, err := ConnectWithConfig(context.Background(), testConfig(t, server.URL), test.WalletMnemonic)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sdk.started {
			require.NoError(t, sdk.Disconnect())
		}
	})
	return sdk
}

func TestGetInfoPubkey(t *testing.T) {
	sdk := setup(t, nil)

	info, err := sdk.GetInfo(context.Background(), models.GetInfoRequest{WithScan: false})
	require.NoError(t, err)
	require.Equal(t, test.WalletPubkey, info.Pubkey)
	require.Zero(t, info.BalanceSat)
	require.Zero(t, info.PendingSendSat)
	require.Zero(t, info.PendingReceiveSat)
}

func TestGetInfoBalance(t *testing.T) {
	sdk := setup(t, nil)

	timestamp := uint32(time.Now().Unix())
	txs := []models.PaymentTxData{
		{TxId: "received", AmountSat: 10_000, PaymentType: models.Receive, IsConfirmed: true, Timestamp: &timestamp},
		{TxId: "sent", AmountSat: 3000, PaymentType: models.Send, IsConfirmed: true, Timestamp: &timestamp},
		{TxId: "sending", AmountSat: 1000, PaymentType: models.Send},
		{TxId: "receiving", AmountSat: 500, PaymentType: models.Receive},
	}
	for _, tx := range txs {
		require.NoError(t, sdk.database.InsertOrUpdatePaymentTxData(tx))
	}

	info, err := sdk.GetInfo(context.Background(), models.GetInfoRequest{})
	require.NoError(t, err)
	require.Equal(t, uint64(6000), info.BalanceSat)
	require.Equal(t, uint64(1000), info.PendingSendSat)
	require.Equal(t, uint64(500), info.PendingReceiveSat)

	payments, err := sdk.ListPayments()
	require.NoError(t, err)
	require.Len(t, payments, len(txs))
}

func TestGetInfoPendingSwaps(t *testing.T) {
	sdk := setup(t, nil)

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	sendSwap := func(id string, amount uint64, state models.PaymentState) models.SendSwap {
		return models.SendSwap{
			Id:                id,
			Invoice:           "lntb" + id,
			PaymentHash:       []byte{1, 2, 3},
			PayerAmountSat:    amount,
			ReceiverAmountSat: amount - 100,
			CreateResponse:    &boltz.CreateSwapResponse{Id: id},
			CreatedAt:         time.Now(),
			State:             state,
			RefundPrivateKey:  key,
		}
	}
	require.NoError(t, sdk.database.CreateSendSwap(sendSwap("created", 1100, models.Created)))
	require.NoError(t, sdk.database.CreateSendSwap(sendSwap("timedOut", 400, models.TimedOut)))
	require.NoError(t, sdk.database.CreateSendSwap(sendSwap("failed", 700, models.Failed)))

	preimage := []byte("preimage")
	require.NoError(t, sdk.database.CreateReceiveSwap(models.ReceiveSwap{
		Id:                "receive",
		Preimage:          preimage,
		CreateResponse:    &boltz.CreateReverseSwapResponse{Id: "receive"},
		Invoice:           "lntbreceive",
		PayerAmountSat:    1000,
		ReceiverAmountSat: 950,
		CreatedAt:         time.Now(),
		State:             models.Created,
		ClaimPrivateKey:   key,
	}))

	timestamp := uint32(time.Now().Unix())
	require.NoError(t, sdk.database.InsertOrUpdatePaymentTxData(models.PaymentTxData{
		TxId: "received", AmountSat: 10_000, PaymentType: models.Receive, IsConfirmed: true, Timestamp: &timestamp,
	}))

	info, err := sdk.GetInfo(context.Background(), models.GetInfoRequest{})
	require.NoError(t, err)
	require.Equal(t, uint64(1500), info.PendingSendSat)
	require.Equal(t, uint64(950), info.PendingReceiveSat)
	require.Equal(t, uint64(8500), info.BalanceSat)
}

func TestGetInfoWithScanOffline(t *testing.T) {
	sdk := setup(t, nil)

	_, err := sdk.GetInfo(context.Background(), models.GetInfoRequest{WithScan: true})
	require.Error(t, err)
}

func TestConnectInvalidMnemonic(t *testing.T) {
	test.InitLogger()
	_, err := ConnectWithConfig(context.Background(), testConfig(t, "http://127.0.0.1:0"), "not a mnemonic")
	require.ErrorIs(t, err, models.ErrSdkErrorGeneric)
}

func TestLifecycle(t *testing.T) {
	sdk := setup(t, nil)

	require.ErrorIs(t, sdk.Start(context.Background(), test.WalletMnemonic), models.ErrSdkErrorAlreadyStarted)

	require.NoError(t, sdk.Disconnect())
	require.ErrorIs(t, sdk.Disconnect(), models.ErrSdkErrorNotStarted)

	_, err := sdk.GetInfo(context.Background(), models.GetInfoRequest{})
	require.ErrorIs(t, err, models.ErrSdkErrorNotStarted)
	_, err = sdk.ListPayments()
	require.ErrorIs(t, err, models.ErrSdkErrorNotStarted)

	// storage survives a restart
	require.NoError(t, sdk.Start(context.Background(), test.WalletMnemonic))
	info, err := sdk.GetInfo(context.Background(), models.GetInfoRequest{})
	require.NoError(t, err)
	require.Equal(t, test.WalletPubkey, info.Pubkey)
}

func TestEventListeners(t *testing.T) {
	sdk := New(DefaultConfig(models.LiquidTestnet))

	var first, second atomic.Int32
	firstId, err := sdk.AddEventListener(models.EventListenerFunc(func(e models.SdkEvent) {
		require.IsType(t, models.SdkEventSynced{}, e)
		first.Add(1)
	}))
	require.NoError(t, err)
	secondId, err := sdk.AddEventListener(models.EventListenerFunc(func(models.SdkEvent) {
		second.Add(1)
	}))
	require.NoError(t, err)
	require.NotEqual(t, firstId, secondId)

	sdk.notify(models.SdkEventSynced{})
	require.Equal(t, int32(1), first.Load())
	require.Equal(t, int32(1), second.Load())

	require.NoError(t, sdk.RemoveEventListener(firstId))
	require.NoError(t, sdk.RemoveEventListener("unknown"))

	sdk.notify(models.SdkEventSynced{})
	require.Equal(t, int32(1), first.Load())
	require.Equal(t, int32(2), second.Load())
}

func TestPrepareReceivePayment(t *testing.T) {
	backend := &fakeBoltz{
		version: "3.7.0",
		reverse: boltz.ReversePairs{
			boltz.CurrencyBtc: {boltz.CurrencyLiquid: testReversePair()},
		},
	}
	sdk := setup(t, backend)

	tests := []struct {
		desc   string
		amount uint64
		fees   uint64
		err    error
	}{
		{"Valid", 10_000, 25 + 27 + 20, nil},
		{"RoundsUp", 1001, 3 + 27 + 20, nil},
		{"BelowMinimum", 999, 0, models.ErrPaymentErrorAmountOutOfRange},
		{"AboveMaximum", 100_001, 0, models.ErrPaymentErrorAmountOutOfRange},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			response, err := sdk.PrepareReceivePayment(models.PrepareReceiveRequest{PayerAmountSat: tc.amount})
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.amount, response.PayerAmountSat)
			require.Equal(t, tc.fees, response.FeesSat)
		})
	}

	t.Run("ChangedFees", func(t *testing.T) {
		_, err := sdk.ReceivePayment(models.PrepareReceiveResponse{PayerAmountSat: 10_000, FeesSat: 1})
		require.ErrorIs(t, err, models.ErrPaymentErrorInvalidOrExpiredFees)
	})
}

func TestBoltzVersion(t *testing.T) {
	backend := &fakeBoltz{
		version: "3.1.0",
		reverse: boltz.ReversePairs{
			boltz.CurrencyBtc: {boltz.CurrencyLiquid: testReversePair()},
		},
	}
	sdk := setup(t, backend)

	_, err := sdk.PrepareReceivePayment(models.PrepareReceiveRequest{PayerAmountSat: 10_000})
	require.ErrorIs(t, err, models.ErrPaymentErrorGeneric)
	require.False(t, sdk.boltzVersionChecked)
}

func TestBoltzUnreachable(t *testing.T) {
	// no version configured makes the fake answer 503
	sdk := setup(t, &fakeBoltz{})

	_, err := sdk.PrepareReceivePayment(models.PrepareReceiveRequest{PayerAmountSat: 10_000})
	require.ErrorIs(t, err, models.ErrSdkErrorServiceConnectivity)
	var sdkErr *models.SdkError
	require.ErrorAs(t, err, &sdkErr)

	invoice := test.NewInvoice(t, test.InvoiceOptions{AmountSat: 10_000})
	_, err = sdk.PrepareSendPayment(models.PrepareSendRequest{Invoice: invoice})
	require.ErrorIs(t, err, models.ErrSdkErrorServiceConnectivity)
	require.False(t, sdk.boltzVersionChecked)
}

func TestPrepareSendPayment(t *testing.T) {
	submarine := boltz.SubmarinePair{Hash: "submarine", Rate: 1}
	submarine.Limits = boltz.Limits{Minimal: 1000, Maximal: 100_000}
	submarine.Fees.Percentage = 0.1
	submarine.Fees.MinerFees = 19

	backend := &fakeBoltz{
		version: "3.7.0",
		submarine: boltz.SubmarinePairs{
			boltz.CurrencyLiquid: {boltz.CurrencyBtc: submarine},
		},
	}
	sdk := setup(t, backend)

	t.Run("InvalidInvoice", func(t *testing.T) {
		_, err := sdk.PrepareSendPayment(models.PrepareSendRequest{Invoice: "lntb1invalid"})
		require.ErrorIs(t, err, models.ErrPaymentErrorInvalidInvoice)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		invoice := test.NewInvoice(t, test.InvoiceOptions{AmountSat: 500})
		_, err := sdk.PrepareSendPayment(models.PrepareSendRequest{Invoice: invoice})
		require.ErrorIs(t, err, models.ErrPaymentErrorAmountOutOfRange)
	})

	t.Run("EmptyWallet", func(t *testing.T) {
		invoice := test.NewInvoice(t, test.InvoiceOptions{AmountSat: 10_000})
		_, err := sdk.PrepareSendPayment(models.PrepareSendRequest{Invoice: invoice})
		require.ErrorIs(t, err, models.ErrPaymentErrorInsufficientFunds)
	})
}

func TestBackupRestore(t *testing.T) {
	sdk := setup(t, nil)

	tx := models.PaymentTxData{TxId: "backup", AmountSat: 1000, PaymentType: models.Receive}
	require.NoError(t, sdk.database.InsertOrUpdatePaymentTxData(tx))
	require.NoError(t, sdk.Backup(models.BackupRequest{}))

	require.NoError(t, sdk.database.InsertOrUpdatePaymentTxData(models.PaymentTxData{TxId: "after", AmountSat: 1}))
	require.NoError(t, sdk.Restore(models.RestoreRequest{}))

	payments, err := sdk.ListPayments()
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, "backup", payments[0].TxId)

	missing := t.TempDir() + "/missing.sql"
	require.ErrorIs(t, sdk.Restore(models.RestoreRequest{BackupPath: &missing}), models.ErrSdkErrorGeneric)
}

func TestEmptyWalletCache(t *testing.T) {
	sdk := setup(t, nil)
	require.NoError(t, sdk.EmptyWalletCache())

	info, err := sdk.GetInfo(context.Background(), models.GetInfoRequest{})
	require.NoError(t, err)
	require.Zero(t, info.BalanceSat)
}
