package database

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func setupDatabase(t *testing.T) *Database {
	db := &Database{Path: ":memory:"}
	require.NoError(t, db.Connect())
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func testKey(t *testing.T) *btcec.PrivateKey {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return key
}

func testSendSwap(t *testing.T, id string, createdAt time.Time) models.SendSwap {
	return models.SendSwap{
		Id:                id,
		Invoice:           "lntb" + id,
		PaymentHash:       []byte{1, 2, 3},
		PayerAmountSat:    1100,
		ReceiverAmountSat: 1000,
		CreateResponse: &boltz.CreateSwapResponse{
			Id:                 id,
			Address:            "tlq1",
			ExpectedAmount:     1100,
			TimeoutBlockHeight: 100,
		},
		CreatedAt:        createdAt,
		State:            models.Created,
		RefundPrivateKey: testKey(t),
	}
}

func testReceiveSwap(t *testing.T, id string, createdAt time.Time) models.ReceiveSwap {
	preimage := sha256.Sum256([]byte(id))
	return models.ReceiveSwap{
		Id:       id,
		Preimage: preimage[:],
		CreateResponse: &boltz.CreateReverseSwapResponse{
			Id:            id,
			Invoice:       "lntb" + id,
			OnchainAmount: 960,
		},
		Invoice:           "lntb" + id,
		PayerAmountSat:    1000,
		ReceiverAmountSat: 950,
		ClaimFeesSat:      10,
		CreatedAt:         createdAt,
		State:             models.Created,
		ClaimPrivateKey:   testKey(t),
	}
}

func TestSendSwap(t *testing.T) {
	db := setupDatabase(t)

	swap := testSendSwap(t, "send", time.Unix(1700000000, 0))
	require.NoError(t, db.CreateSendSwap(swap))

	queried, err := db.QuerySendSwap(swap.Id)
	require.NoError(t, err)
	require.Equal(t, swap.Invoice, queried.Invoice)
	require.Equal(t, swap.PaymentHash, queried.PaymentHash)
	require.Nil(t, queried.Preimage)
	require.Equal(t, swap.CreateResponse.Address, queried.CreateResponse.Address)
	require.Equal(t, swap.CreateResponse.ExpectedAmount, queried.CreateResponse.ExpectedAmount)
	require.Equal(t, swap.RefundPrivateKey.Serialize(), queried.RefundPrivateKey.Serialize())
	require.Equal(t, swap.CreatedAt, queried.CreatedAt)
	require.Equal(t, models.Created, queried.State)

	require.NoError(t, db.SetSendSwapLockupTxId(queried, "lockup"))
	require.NoError(t, db.UpdateSendSwapState(queried, models.Pending))
	require.NoError(t, db.SetSendSwapPreimage(queried, []byte{4, 5}))

	byInvoice, err := db.QuerySendSwapByInvoice(swap.Invoice)
	require.NoError(t, err)
	require.Equal(t, "lockup", byInvoice.LockupTxId)
	require.Equal(t, models.Pending, byInvoice.State)
	require.Equal(t, []byte{4, 5}, byInvoice.Preimage)

	byTx, err := db.QuerySendSwapByTxId("lockup")
	require.NoError(t, err)
	require.Equal(t, swap.Id, byTx.Id)

	ongoing, err := db.QueryOngoingSendSwaps()
	require.NoError(t, err)
	require.Len(t, ongoing, 1)

	require.NoError(t, db.UpdateSendSwapState(queried, models.Complete))
	ongoing, err = db.QueryOngoingSendSwaps()
	require.NoError(t, err)
	require.Empty(t, ongoing)

	_, err = db.QuerySendSwap("missing")
	require.ErrorIs(t, err, ErrSwapNotFound)

	require.Error(t, db.CreateSendSwap(swap), "invoices are unique")
}

func TestReceiveSwap(t *testing.T) {
	db := setupDatabase(t)

	swap := testReceiveSwap(t, "receive", time.Unix(1700000000, 0))
	require.NoError(t, db.CreateReceiveSwap(swap))

	queried, err := db.QueryReceiveSwap(swap.Id)
	require.NoError(t, err)
	require.Equal(t, swap.Preimage, queried.Preimage)
	require.Equal(t, swap.PreimageHash(), queried.PreimageHash())
	require.Equal(t, swap.CreateResponse.OnchainAmount, queried.CreateResponse.OnchainAmount)
	require.Equal(t, swap.ClaimFeesSat, queried.ClaimFeesSat)
	require.Empty(t, queried.ClaimTxId)

	require.NoError(t, db.SetReceiveSwapClaimTxId(queried, "claim"))
	require.NoError(t, db.UpdateReceiveSwapState(queried, models.Pending))

	byClaim, err := db.QueryReceiveSwapByClaimTxId("claim")
	require.NoError(t, err)
	require.Equal(t, swap.Id, byClaim.Id)
	require.Equal(t, models.Pending, byClaim.State)

	limit := uint64(1)
	swaps, err := db.QueryReceiveSwaps(SwapQuery{Limit: &limit, States: []models.PaymentState{models.Pending}})
	require.NoError(t, err)
	require.Len(t, swaps, 1)
}

func TestQueryPayments(t *testing.T) {
	db := setupDatabase(t)

	confirmedAt := uint32(1700000500)

	// plain incoming transaction
	require.NoError(t, db.InsertOrUpdatePaymentTxData(models.PaymentTxData{
		TxId:        "plain",
		Timestamp:   &confirmedAt,
		AmountSat:   5000,
		PaymentType: models.Receive,
		IsConfirmed: true,
	}))

	// claimed receive swap
	receive := testReceiveSwap(t, "receive", time.Unix(1700000100, 0))
	receive.ClaimTxId = "claim"
	receive.State = models.Pending
	require.NoError(t, db.CreateReceiveSwap(receive))
	require.NoError(t, db.InsertOrUpdatePaymentTxData(models.PaymentTxData{
		TxId:        "claim",
		AmountSat:   950,
		PaymentType: models.Receive,
	}))

	// refunded send swap
	send := testSendSwap(t, "send", time.Unix(1700000200, 0))
	send.LockupTxId = "lockup"
	send.RefundTxId = "refund"
	send.State = models.Failed
	require.NoError(t, db.CreateSendSwap(send))
	require.NoError(t, db.InsertOrUpdatePaymentTxData(models.PaymentTxData{
		TxId:        "lockup",
		AmountSat:   1100,
		PaymentType: models.Send,
	}))
	require.NoError(t, db.InsertOrUpdatePaymentTxData(models.PaymentTxData{
		TxId:        "refund",
		AmountSat:   1050,
		PaymentType: models.Receive,
	}))

	// swap without any transaction yet
	require.NoError(t, db.CreateSendSwap(testSendSwap(t, "created", time.Unix(1700000300, 0))))

	payments, err := db.QueryPayments()
	require.NoError(t, err)
	require.Len(t, payments, 4)

	require.Equal(t, "plain", payments[0].TxId)
	require.Equal(t, models.Complete, payments[0].Status)

	require.Equal(t, "created", payments[1].SwapId)
	require.Empty(t, payments[1].TxId)

	require.Equal(t, "lockup", payments[2].TxId)
	require.Equal(t, "send", payments[2].SwapId)
	require.Equal(t, uint64(1050), payments[2].RefundTxAmountSat)
	require.Equal(t, models.Failed, payments[2].Status)

	require.Equal(t, "claim", payments[3].TxId)
	require.Equal(t, uint64(50), payments[3].FeesSat)
	require.Equal(t, models.Pending, payments[3].Status)

	// confirmation updates the existing row
	require.NoError(t, db.InsertOrUpdatePaymentTxData(models.PaymentTxData{
		TxId:        "claim",
		Timestamp:   &confirmedAt,
		AmountSat:   950,
		PaymentType: models.Receive,
		IsConfirmed: true,
	}))
	tx, err := db.QueryPaymentTxData("claim")
	require.NoError(t, err)
	require.True(t, tx.IsConfirmed)
	require.Equal(t, confirmedAt, *tx.Timestamp)
}

func TestNextIndex(t *testing.T) {
	db := setupDatabase(t)

	for i := uint32(0); i < 3; i++ {
		index, err := db.NextIndex("counter")
		require.NoError(t, err)
		require.Equal(t, i, index)
	}

	value, err := db.GetSetting("counter")
	require.NoError(t, err)
	require.Equal(t, "3", value)

	value, err = db.GetSetting("missing")
	require.NoError(t, err)
	require.Empty(t, value)
}

func TestBackupRestore(t *testing.T) {
	dir := t.TempDir()
	db := &Database{Path: filepath.Join(dir, "storage.sql")}
	require.NoError(t, db.Connect())
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	require.NoError(t, db.CreateSendSwap(testSendSwap(t, "before", time.Now())))

	backupPath := filepath.Join(dir, "backup.sql")
	require.NoError(t, db.Backup(backupPath))
	_, err := os.Stat(backupPath)
	require.NoError(t, err)

	require.NoError(t, db.CreateSendSwap(testSendSwap(t, "after", time.Now())))

	require.NoError(t, db.Restore(backupPath))
	swaps, err := db.QuerySendSwaps(SwapQuery{})
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	require.Equal(t, "before", swaps[0].Id)

	memory := setupDatabase(t)
	require.Error(t, memory.Backup(backupPath))
	require.Error(t, db.Restore(filepath.Join(dir, "missing.sql")))
}

func TestRestoreInvalidBackup(t *testing.T) {
	dir := t.TempDir()
	db := &Database{Path: filepath.Join(dir, "storage.sql")}
	require.NoError(t, db.Connect())
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	require.NoError(t, db.CreateSendSwap(testSendSwap(t, "kept", time.Now())))

	invalid := filepath.Join(dir, "invalid.sql")
	require.NoError(t, os.WriteFile(invalid, []byte("not a database at all, just some bytes to fill the header"), 0600))
	require.Error(t, db.Restore(invalid))

	swaps, err := db.QuerySendSwaps(SwapQuery{})
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	require.Equal(t, "kept", swaps[0].Id)

	_, err = os.Stat(db.Path + ".restore")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRestoreConcurrentQueries(t *testing.T) {
	dir := t.TempDir()
	db := &Database{Path: filepath.Join(dir, "storage.sql")}
	require.NoError(t, db.Connect())
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	require.NoError(t, db.CreateSendSwap(testSendSwap(t, "swap", time.Now())))
	backupPath := filepath.Join(dir, "backup.sql")
	require.NoError(t, db.Backup(backupPath))

	stop := make(chan struct{})
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := db.QueryPayments(); err != nil {
				errs <- err
				return
			}
			if _, err := db.NextIndex("index"); err != nil {
				errs <- err
				return
			}
		}
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, db.Restore(backupPath))
	}
	close(stop)
	require.NoError(t, <-errs)

	swaps, err := db.QuerySendSwaps(SwapQuery{})
	require.NoError(t, err)
	require.Len(t, swaps, 1)
}
