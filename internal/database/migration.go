package database

import (
	"fmt"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
)

// migrations[i] upgrades the schema from version i+1 to i+2
var migrations = []string{
	// swap key indices used to live in memory only
	`
	CREATE TABLE settings
	(
		key   VARCHAR PRIMARY KEY,
		value VARCHAR NOT NULL
	);
	INSERT INTO settings (key, value) SELECT 'swapKeyIndex/send', COUNT(*) FROM send_swaps;
	INSERT INTO settings (key, value) SELECT 'swapKeyIndex/receive', COUNT(*) FROM receive_swaps;
	`,
}

var latestSchemaVersion = len(migrations) + 1

func (database *Database) migrate() error {
	version, err := database.queryVersion()
	if err != nil {
		logger.Infof("No database schema version found, creating schema version %d", latestSchemaVersion)
		if err := database.createTables(); err != nil {
			return err
		}
		_, err = database.Exec("INSERT INTO version (version) VALUES (?)", latestSchemaVersion)
		return err
	}

	if version == latestSchemaVersion {
		logger.Debugf("Database is at latest schema version %d", version)
		return nil
	}
	if version < 1 || version > latestSchemaVersion {
		return fmt.Errorf("found unexpected database schema version: %d", version)
	}

	// every step runs in one transaction so a failure leaves the old schema intact
	return database.RunTx(func(tx *Transaction) error {
		for ; version < latestSchemaVersion; version++ {
			logger.Infof("Updating database from version %d to %d", version, version+1)
			if _, err := tx.Exec(migrations[version-1]); err != nil {
				return fmt.Errorf("migration to version %d failed: %w", version+1, err)
			}
		}
		_, err := tx.Exec("UPDATE version SET version = ?", latestSchemaVersion)
		return err
	})
}

func (database *Database) queryVersion() (version int, err error) {
	err = database.QueryRow("SELECT version FROM version").Scan(&version)
	return version, err
}
