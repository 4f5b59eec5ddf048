package database

import (
	"database/sql"
)

// scanRow maps the columns of the current row to the given destinations by name
func scanRow(row *sql.Rows, rowValues map[string]interface{}) error {
	columns, err := row.Columns()
	if err != nil {
		return err
	}

	var values []interface{}

	for _, column := range columns {
		values = append(values, rowValues[column])
	}

	return row.Scan(values...)
}
