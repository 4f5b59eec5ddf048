package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigration(t *testing.T) {
	tt := []struct {
		name        string
		schema      string
		successfull bool
	}{
		{"NoSettings", noSettingsSchema, true},
		{"Unknown", unknownSchema, false},
		{"Zero", "CREATE TABLE version (version INT); INSERT INTO version VALUES (0);", false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			path := t.TempDir() + "/test.db"
			db, err := sql.Open("sqlite3", path)
			require.NoError(t, err)
			_, err = db.Exec(tc.schema)
			require.NoError(t, err)
			database := &Database{Path: path, db: db}
			originalVersion, err := database.queryVersion()
			require.NoError(t, err)
			require.NoError(t, db.Close())

			database = &Database{Path: path}
			migrationError := database.Connect()
			version, err := database.queryVersion()
			require.NoError(t, err)
			if tc.successfull {
				require.NoError(t, migrationError)
				require.Equal(t, latestSchemaVersion, version)

				swaps, err := database.QuerySendSwaps(SwapQuery{})
				require.NoError(t, err)
				require.Len(t, swaps, 1)

				// the existing swap already used the first key
				index, err := database.NextIndex("swapKeyIndex/send")
				require.NoError(t, err)
				require.Equal(t, uint32(1), index)
			} else {
				require.Error(t, migrationError)
				require.Equal(t, originalVersion, version)
			}
		})
	}
}

const noSettingsSchema = `
CREATE TABLE version (version INT);
INSERT INTO version VALUES (1);
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
INSERT INTO send_swaps VALUES ('send', 'lntb1', 'aa', NULL, 1000, 900, '{"id": "send"}',
    '0101010101010101010101010101010101010101010101010101010101010101', NULL, NULL, 1700000000, 1);
`

const unknownSchema = `
CREATE TABLE version (version INT);
INSERT INTO version VALUES (99);
`
