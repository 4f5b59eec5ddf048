package database

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/hashicorp/go-multierror"
)

// Backup writes a consistent copy of the database to path, replacing any existing file
func (database *Database) Backup(path string) error {
	if database.Path == ":memory:" {
		return errors.New("cannot back up an in-memory database")
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	logger.Infof("Backing up database to %s", path)
	_, err := database.Exec("VACUUM INTO ?", path)
	return err
}

// Restore replaces the database with the backup at path. The backup is staged and migrated next to the
// database first, the current file is only replaced once that succeeded.
func (database *Database) Restore(path string) error {
	if database.Path == ":memory:" {
		return errors.New("cannot restore an in-memory database")
	}

	staged := database.Path + ".restore"
	if err := stageBackup(path, staged); err != nil {
		_ = os.Remove(staged)
		return err
	}

	database.lock.Lock()
	defer database.lock.Unlock()

	if database.db != nil {
		if err := database.db.Close(); err != nil {
			return err
		}
		database.db = nil
	}

	if err := os.Rename(staged, database.Path); err != nil {
		_ = os.Remove(staged)
		result := multierror.Append(fmt.Errorf("could not replace database: %w", err))
		if err := database.open(); err != nil {
			result = multierror.Append(result, fmt.Errorf("could not reopen database: %w", err))
		}
		return result.ErrorOrNil()
	}

	if err := database.open(); err != nil {
		return fmt.Errorf("could not open restored database: %w", err)
	}
	logger.Infof("Restored database from %s", path)
	return nil
}

func stageBackup(path string, staged string) error {
	backup, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open backup: %w", err)
	}
	defer backup.Close()

	target, err := os.Create(staged)
	if err != nil {
		return err
	}
	if _, err := io.Copy(target, backup); err != nil {
		target.Close()
		return fmt.Errorf("could not copy backup: %w", err)
	}
	if err := target.Close(); err != nil {
		return err
	}

	check := &Database{Path: staged}
	err = check.Connect()
	if closeErr := check.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("invalid backup: %w", err)
	}
	return nil
}
