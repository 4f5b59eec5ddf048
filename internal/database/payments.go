package database

import (
	"database/sql"
	"sort"

	"github.com/breez/breez-liquid-sdk-go/pkg/models"
)

func parsePaymentTxData(rows *sql.Rows) (*models.PaymentTxData, error) {
	var tx models.PaymentTxData
	var timestamp sql.NullInt64

	err := scanRow(
		rows,
		map[string]interface{}{
			"txId":        &tx.TxId,
			"timestamp":   &timestamp,
			"amountSat":   &tx.AmountSat,
			"paymentType": &tx.PaymentType,
			"isConfirmed": &tx.IsConfirmed,
		},
	)
	if err != nil {
		return nil, err
	}
	tx.Timestamp = parseNullUint32(timestamp)
	return &tx, nil
}

const upsertPaymentTxDataStatement = `
INSERT OR REPLACE INTO payment_tx_data (txId, timestamp, amountSat, paymentType, isConfirmed)
VALUES (?, ?, ?, ?, ?)
`

func (database *Database) InsertOrUpdatePaymentTxData(tx models.PaymentTxData) error {
	var timestamp sql.NullInt64
	if tx.Timestamp != nil {
		timestamp = sql.NullInt64{Int64: int64(*tx.Timestamp), Valid: true}
	}
	_, err := database.Exec(
		upsertPaymentTxDataStatement,
		tx.TxId,
		timestamp,
		tx.AmountSat,
		tx.PaymentType,
		tx.IsConfirmed,
	)
	return err
}

func (database *Database) QueryPaymentTxData(txId string) (*models.PaymentTxData, error) {
	database.lock.RLock()
	defer database.lock.RUnlock()
	rows, err := database.Query("SELECT * FROM payment_tx_data WHERE txId = ?", txId)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	if rows.Next() {
		return parsePaymentTxData(rows)
	}
	return nil, sql.ErrNoRows
}

func (database *Database) QueryAllPaymentTxData() (txs []*models.PaymentTxData, err error) {
	database.lock.RLock()
	defer database.lock.RUnlock()
	rows, err := database.Query("SELECT * FROM payment_tx_data")
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	for rows.Next() {
		tx, err := parsePaymentTxData(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// QueryPayments joins wallet transactions with the swaps they belong to. Swaps
// without a known transaction are included as well, newest payments come first.
func (database *Database) QueryPayments() ([]models.Payment, error) {
	txs, err := database.QueryAllPaymentTxData()
	if err != nil {
		return nil, err
	}
	sendSwaps, err := database.QuerySendSwaps(SwapQuery{})
	if err != nil {
		return nil, err
	}
	receiveSwaps, err := database.QueryReceiveSwaps(SwapQuery{})
	if err != nil {
		return nil, err
	}

	swapsByTx := make(map[string]models.SwapDetails)
	linked := make(map[string]bool)
	for _, swap := range sendSwaps {
		if swap.LockupTxId != "" {
			swapsByTx[swap.LockupTxId] = swap.Details()
		}
	}
	for _, swap := range receiveSwaps {
		if swap.ClaimTxId != "" {
			swapsByTx[swap.ClaimTxId] = swap.Details()
		}
	}

	// refunds are shown as part of the send they belong to
	refunds := make(map[string]bool)
	for _, swap := range sendSwaps {
		if swap.RefundTxId != "" {
			refunds[swap.RefundTxId] = true
		}
	}
	amounts := make(map[string]uint64, len(txs))
	for _, tx := range txs {
		amounts[tx.TxId] = tx.AmountSat
	}

	var payments []models.Payment
	for _, tx := range txs {
		if refunds[tx.TxId] {
			continue
		}
		var details *models.SwapDetails
		if swap, ok := swapsByTx[tx.TxId]; ok {
			details = &swap
			linked[swap.Id] = true
		}
		payment := models.PaymentFromTxData(*tx, details)
		if details != nil && details.RefundTxId != "" {
			payment.RefundTxAmountSat = amounts[details.RefundTxId]
		}
		payments = append(payments, payment)
	}

	for _, swap := range sendSwaps {
		if !linked[swap.Id] {
			payments = append(payments, models.PaymentFromSwap(models.Send, swap.Details()))
		}
	}
	for _, swap := range receiveSwaps {
		if !linked[swap.Id] {
			payments = append(payments, models.PaymentFromSwap(models.Receive, swap.Details()))
		}
	}

	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].Timestamp > payments[j].Timestamp
	})
	return payments, nil
}

// QuerySwapPayment returns the payment view of a single swap
func (database *Database) QuerySwapPayment(swapId string) (*models.Payment, error) {
	payments, err := database.QueryPayments()
	if err != nil {
		return nil, err
	}
	for _, payment := range payments {
		if payment.SwapId == swapId {
			return &payment, nil
		}
	}
	return nil, ErrSwapNotFound
}
