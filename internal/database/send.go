package database

import (
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
)

var ErrSwapNotFound = errors.New("swap not found")

func parseSendSwap(rows *sql.Rows) (*models.SendSwap, error) {
	var swap models.SendSwap

	var paymentHash string
	var preimage HexScanner
	var refundPrivateKey PrivateKeyScanner
	var lockupTxId, refundTxId sql.NullString
	var createdAt int64
	createResponse := JsonScanner[*boltz.CreateSwapResponse]{}

	err := scanRow(
		rows,
		map[string]interface{}{
			"id":                &swap.Id,
			"invoice":           &swap.Invoice,
			"paymentHash":       &paymentHash,
			"preimage":          &preimage,
			"payerAmountSat":    &swap.PayerAmountSat,
			"receiverAmountSat": &swap.ReceiverAmountSat,
			"createResponse":    &createResponse,
			"refundPrivateKey":  &refundPrivateKey,
			"lockupTxId":        &lockupTxId,
			"refundTxId":        &refundTxId,
			"createdAt":         &createdAt,
			"state":             &swap.State,
		},
	)
	if err != nil {
		return nil, err
	}

	swap.PaymentHash, err = hex.DecodeString(paymentHash)
	if err != nil {
		return nil, err
	}
	swap.Preimage = preimage.Value
	swap.CreateResponse = createResponse.Value
	swap.RefundPrivateKey = refundPrivateKey.Value
	swap.LockupTxId = lockupTxId.String
	swap.RefundTxId = refundTxId.String
	swap.CreatedAt = parseTime(createdAt)

	return &swap, nil
}

func (database *Database) querySendSwap(query string, args ...any) (swap *models.SendSwap, err error) {
	database.lock.RLock()
	defer database.lock.RUnlock()
	rows, err := database.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	if rows.Next() {
		return parseSendSwap(rows)
	}
	return nil, ErrSwapNotFound
}

func (database *Database) QuerySendSwap(id string) (*models.SendSwap, error) {
	return database.querySendSwap("SELECT * FROM send_swaps WHERE id = ?", id)
}

func (database *Database) QuerySendSwapByInvoice(invoice string) (*models.SendSwap, error) {
	return database.querySendSwap("SELECT * FROM send_swaps WHERE invoice = ?", invoice)
}

func (database *Database) QuerySendSwapByTxId(txId string) (*models.SendSwap, error) {
	return database.querySendSwap("SELECT * FROM send_swaps WHERE lockupTxId = ? OR refundTxId = ?", txId, txId)
}

func (database *Database) QuerySendSwaps(args SwapQuery) (swaps []*models.SendSwap, err error) {
	database.lock.RLock()
	defer database.lock.RUnlock()
	where, values := args.ToWhereClause()
	rows, err := database.Query("SELECT * FROM send_swaps"+where, values...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	for rows.Next() {
		swap, err := parseSendSwap(rows)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, swap)
	}
	return swaps, rows.Err()
}

func (database *Database) QueryOngoingSendSwaps() ([]*models.SendSwap, error) {
	return database.QuerySendSwaps(OngoingSwapQuery)
}

const insertSendSwapStatement = `
INSERT INTO send_swaps (id, invoice, paymentHash, preimage, payerAmountSat, receiverAmountSat, createResponse,
                        refundPrivateKey, lockupTxId, refundTxId, createdAt, state)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (database *Database) CreateSendSwap(swap models.SendSwap) error {
	_, err := database.Exec(
		insertSendSwapStatement,
		swap.Id,
		swap.Invoice,
		hex.EncodeToString(swap.PaymentHash),
		formatHex(swap.Preimage),
		swap.PayerAmountSat,
		swap.ReceiverAmountSat,
		formatJson(swap.CreateResponse),
		formatPrivateKey(swap.RefundPrivateKey),
		formatNullString(swap.LockupTxId),
		formatNullString(swap.RefundTxId),
		FormatTime(swap.CreatedAt),
		swap.State,
	)
	return err
}

func (database *Database) UpdateSendSwapState(swap *models.SendSwap, state models.PaymentState) error {
	swap.State = state

	_, err := database.Exec("UPDATE send_swaps SET state = ? WHERE id = ?", state, swap.Id)
	return err
}

func (database *Database) SetSendSwapPreimage(swap *models.SendSwap, preimage []byte) error {
	swap.Preimage = preimage

	_, err := database.Exec("UPDATE send_swaps SET preimage = ? WHERE id = ?", formatHex(preimage), swap.Id)
	return err
}

func (database *Database) SetSendSwapLockupTxId(swap *models.SendSwap, lockupTxId string) error {
	swap.LockupTxId = lockupTxId

	_, err := database.Exec("UPDATE send_swaps SET lockupTxId = ? WHERE id = ?", lockupTxId, swap.Id)
	return err
}

func (database *Database) SetSendSwapRefundTxId(swap *models.SendSwap, refundTxId string) error {
	swap.RefundTxId = refundTxId

	_, err := database.Exec("UPDATE send_swaps SET refundTxId = ? WHERE id = ?", refundTxId, swap.Id)
	return err
}
