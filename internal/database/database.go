package database

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/btcsuite/btcd/btcec/v2"
	_ "github.com/mattn/go-sqlite3"
)

const createTables = `
CREATE TABLE version
(
    version INT
);
CREATE TABLE settings
(
    key   VARCHAR PRIMARY KEY,
    value VARCHAR NOT NULL
);
CREATE TABLE send_swaps
(
    id                VARCHAR PRIMARY KEY,
    invoice           VARCHAR NOT NULL UNIQUE,
    paymentHash       VARCHAR NOT NULL,
    preimage          VARCHAR,
    payerAmountSat    INTEGER NOT NULL,
    receiverAmountSat INTEGER NOT NULL,
    createResponse    JSON    NOT NULL,
    refundPrivateKey  VARCHAR NOT NULL,
    lockupTxId        VARCHAR,
    refundTxId        VARCHAR,
    createdAt         INTEGER NOT NULL,
    state             INTEGER NOT NULL
);
CREATE TABLE receive_swaps
(
    id                VARCHAR PRIMARY KEY,
    preimage          VARCHAR NOT NULL,
    createResponse    JSON    NOT NULL,
    invoice           VARCHAR NOT NULL UNIQUE,
    payerAmountSat    INTEGER NOT NULL,
    receiverAmountSat INTEGER NOT NULL,
    claimFeesSat      INTEGER NOT NULL,
    claimPrivateKey   VARCHAR NOT NULL,
    claimTxId         VARCHAR,
    createdAt         INTEGER NOT NULL,
    state             INTEGER NOT NULL
);
CREATE TABLE payment_tx_data
(
    txId        VARCHAR PRIMARY KEY,
    timestamp   INTEGER,
    amountSat   INTEGER NOT NULL,
    paymentType INTEGER NOT NULL,
    isConfirmed BOOLEAN NOT NULL
);
`

type Database struct {
	Path string `long:"database.path" description:"Path to the database file"`

	db *sql.DB
	tx *sql.Tx

	lock sync.RWMutex
}

type Transaction struct {
	Database
}

type JsonScanner[T any] struct {
	Value    T
	Nullable bool
}

func (j *JsonScanner[T]) Scan(src any) error {
	if (src == nil || src == "") && j.Nullable {
		return nil
	}
	switch value := src.(type) {
	case string:
		return json.Unmarshal([]byte(value), &j.Value)
	case []byte:
		return json.Unmarshal(value, &j.Value)
	}
	return fmt.Errorf("unsupported type: %T", src)
}

type PrivateKeyScanner struct {
	Value    *btcec.PrivateKey
	Nullable bool
}

func (s *PrivateKeyScanner) Scan(src any) (err error) {
	if (src == nil || src == "") && s.Nullable {
		return nil
	}
	if str, ok := src.(string); ok {
		s.Value, err = ParsePrivateKey(str)
		return err
	}
	return fmt.Errorf("unsupported type: %T", src)
}

type HexScanner struct {
	Value []byte
}

func (s *HexScanner) Scan(src any) (err error) {
	switch value := src.(type) {
	case nil:
		s.Value = nil
		return nil
	case string:
		s.Value, err = hex.DecodeString(value)
		return err
	}
	return fmt.Errorf("unsupported type: %T", src)
}

func (database *Database) BeginTx() (*Transaction, error) {
	tx, err := database.db.Begin()
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Database{tx: tx},
	}, nil
}

// RunTx holds the read lock for the whole transaction so the connection cannot be swapped underneath it
func (database *Database) RunTx(run func(tx *Transaction) error) error {
	database.lock.RLock()
	defer database.lock.RUnlock()

	tx, err := database.BeginTx()
	if err != nil {
		return err
	}
	if err := run(tx); err != nil {
		return tx.Rollback(err)
	}
	return tx.Commit()
}

func (transaction *Transaction) Commit() error {
	return transaction.tx.Commit()
}

func (transaction *Transaction) Rollback(cause error) error {
	if err := transaction.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback: %w: %w", err, cause)
	}
	return cause
}

type SwapQuery struct {
	States []models.PaymentState
	Since  time.Time
	Limit  *uint64
}

var OngoingSwapQuery = SwapQuery{
	States: []models.PaymentState{models.Created, models.Pending},
}

func (query *SwapQuery) ToWhereClause() (string, []any) {
	var conditions []string
	var values []any
	if query.States != nil {
		states := make([]string, len(query.States))
		for i, state := range query.States {
			states[i] = "?"
			values = append(values, state)
		}
		conditions = append(conditions, "state IN ("+strings.Join(states, ",")+")")
	}
	if !query.Since.IsZero() {
		conditions = append(conditions, "createdAt >= ?")
		values = append(values, query.Since.Unix())
	}
	var where string
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	where += " ORDER BY createdAt DESC"
	if query.Limit != nil {
		where += " LIMIT ?"
		values = append(values, *query.Limit)
	}
	return where, values
}

func (database *Database) open() error {
	logger.Info("Opening database: " + database.Path)
	db, err := sql.Open("sqlite3", database.Path)
	if err != nil {
		return err
	}
	// sqlite only allows a single writer and every in-memory connection gets its own database
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}
	database.db = db
	return nil
}

func (database *Database) Connect() error {
	if database.db == nil {
		if err := database.open(); err != nil {
			return err
		}
		if err := database.migrate(); err != nil {
			return err
		}
	}
	return nil
}

func (database *Database) Close() error {
	if database.db == nil {
		return nil
	}
	err := database.db.Close()
	database.db = nil
	return err
}

func (database *Database) Exec(query string, args ...any) (sql.Result, error) {
	database.lock.Lock()
	defer database.lock.Unlock()
	logger.Silly("Executing query: " + query)
	if database.tx != nil {
		return database.tx.Exec(query, args...)
	}
	return database.db.Exec(query, args...)
}

// Query expects the caller to hold the read lock until the rows are closed
func (database *Database) Query(query string, args ...any) (*sql.Rows, error) {
	logger.Silly("Executing query: " + query)
	if database.tx != nil {
		return database.tx.Query(query, args...)
	}
	return database.db.Query(query, args...)
}

func (database *Database) QueryRow(query string, args ...any) *sql.Row {
	logger.Silly("Executing query: " + query)
	if database.tx != nil {
		return database.tx.QueryRow(query, args...)
	}
	return database.db.QueryRow(query, args...)
}

func (database *Database) createTables() error {
	_, err := database.Exec(createTables)
	return err
}

func ParsePrivateKey(privateKeyHex string) (*btcec.PrivateKey, error) {
	privateKeyBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, err
	}
	priv, _ := btcec.PrivKeyFromBytes(privateKeyBytes)
	return priv, nil
}

func formatPrivateKey(key *btcec.PrivateKey) string {
	if key == nil {
		return ""
	}
	return hex.EncodeToString(key.Serialize())
}

func formatNullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func formatHex(value []byte) sql.NullString {
	return formatNullString(hex.EncodeToString(value))
}

func parseTime(unix int64) time.Time {
	return time.Unix(unix, 0)
}

func FormatTime(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}

func parseNullUint32(value sql.NullInt64) *uint32 {
	if value.Valid {
		value := uint32(value.Int64)
		return &value
	}
	return nil
}

func formatJson(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		logger.Errorf("Could not marshal json value %v: %v", value, err)
	}
	return string(encoded)
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.Errorf("Error closing rows: %v", err)
	}
}
