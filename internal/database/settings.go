package database

import (
	"database/sql"
	"errors"
	"strconv"
)

func (database *Database) GetSetting(key string) (string, error) {
	database.lock.RLock()
	defer database.lock.RUnlock()
	var value string
	err := database.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (database *Database) SetSetting(key string, value string) error {
	_, err := database.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	return err
}

// NextIndex returns the current value of the counter and increments it
func (database *Database) NextIndex(key string) (index uint32, err error) {
	err = database.RunTx(func(tx *Transaction) error {
		current, err := tx.GetSetting(key)
		if err != nil {
			return err
		}
		if current != "" {
			parsed, err := strconv.ParseUint(current, 10, 32)
			if err != nil {
				return err
			}
			index = uint32(parsed)
		}
		return tx.SetSetting(key, strconv.FormatUint(uint64(index+1), 10))
	})
	return index, err
}
