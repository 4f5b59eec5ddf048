package database

import (
	"database/sql"

	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
)

func parseReceiveSwap(rows *sql.Rows) (*models.ReceiveSwap, error) {
	var swap models.ReceiveSwap

	var preimage HexScanner
	var claimPrivateKey PrivateKeyScanner
	var claimTxId sql.NullString
	var createdAt int64
	createResponse := JsonScanner[*boltz.CreateReverseSwapResponse]{}

	err := scanRow(
		rows,
		map[string]interface{}{
			"id":                &swap.Id,
			"preimage":          &preimage,
			"createResponse":    &createResponse,
			"invoice":           &swap.Invoice,
			"payerAmountSat":    &swap.PayerAmountSat,
			"receiverAmountSat": &swap.ReceiverAmountSat,
			"claimFeesSat":      &swap.ClaimFeesSat,
			"claimPrivateKey":   &claimPrivateKey,
			"claimTxId":         &claimTxId,
			"createdAt":         &createdAt,
			"state":             &swap.State,
		},
	)
	if err != nil {
		return nil, err
	}

	swap.Preimage = preimage.Value
	swap.CreateResponse = createResponse.Value
	swap.ClaimPrivateKey = claimPrivateKey.Value
	swap.ClaimTxId = claimTxId.String
	swap.CreatedAt = parseTime(createdAt)

	return &swap, nil
}

func (database *Database) queryReceiveSwap(query string, args ...any) (*models.ReceiveSwap, error) {
	database.lock.RLock()
	defer database.lock.RUnlock()
	rows, err := database.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	if rows.Next() {
		return parseReceiveSwap(rows)
	}
	return nil, ErrSwapNotFound
}

func (database *Database) QueryReceiveSwap(id string) (*models.ReceiveSwap, error) {
	return database.queryReceiveSwap("SELECT * FROM receive_swaps WHERE id = ?", id)
}

func (database *Database) QueryReceiveSwapByClaimTxId(claimTxId string) (*models.ReceiveSwap, error) {
	return database.queryReceiveSwap("SELECT * FROM receive_swaps WHERE claimTxId = ?", claimTxId)
}

func (database *Database) QueryReceiveSwaps(args SwapQuery) (swaps []*models.ReceiveSwap, err error) {
	database.lock.RLock()
	defer database.lock.RUnlock()
	where, values := args.ToWhereClause()
	rows, err := database.Query("SELECT * FROM receive_swaps"+where, values...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	for rows.Next() {
		swap, err := parseReceiveSwap(rows)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, swap)
	}
	return swaps, rows.Err()
}

func (database *Database) QueryOngoingReceiveSwaps() ([]*models.ReceiveSwap, error) {
	return database.QueryReceiveSwaps(OngoingSwapQuery)
}

const insertReceiveSwapStatement = `
INSERT INTO receive_swaps (id, preimage, createResponse, invoice, payerAmountSat, receiverAmountSat, claimFeesSat,
                           claimPrivateKey, claimTxId, createdAt, state)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (database *Database) CreateReceiveSwap(swap models.ReceiveSwap) error {
	_, err := database.Exec(
		insertReceiveSwapStatement,
		swap.Id,
		formatHex(swap.Preimage),
		formatJson(swap.CreateResponse),
		swap.Invoice,
		swap.PayerAmountSat,
		swap.ReceiverAmountSat,
		swap.ClaimFeesSat,
		formatPrivateKey(swap.ClaimPrivateKey),
		formatNullString(swap.ClaimTxId),
		FormatTime(swap.CreatedAt),
		swap.State,
	)
	return err
}

func (database *Database) UpdateReceiveSwapState(swap *models.ReceiveSwap, state models.PaymentState) error {
	swap.State = state

	_, err := database.Exec("UPDATE receive_swaps SET state = ? WHERE id = ?", state, swap.Id)
	return err
}

func (database *Database) SetReceiveSwapClaimTxId(swap *models.ReceiveSwap, claimTxId string) error {
	swap.ClaimTxId = claimTxId

	_, err := database.Exec("UPDATE receive_swaps SET claimTxId = ? WHERE id = ?", claimTxId, swap.Id)
	return err
}
