package sql

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Record is one result row keyed by column name.
type Record map[string]any

// ScanRecords reads all rows into records and closes rows.
// Byte slices returned by the driver are copied into strings.
func ScanRecords(rows ColumnScanner) (_ []Record, err error) {
	defer func() {
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
	}()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	var records []Record
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		rec := make(Record, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: rows: %w", err)
	}
	return records, nil
}

// TimeLayout is the DATETIME text layout used by MySQL and SQLite.
const TimeLayout = "2006-01-02 15:04:05"

// sqliteTimeLayout is how modernc.org/sqlite stores time.Time arguments.
const sqliteTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// Decode maps records onto a slice of T using `db` struct tags.
// Values are converted weakly, so "42" decodes into an int field and
// a DATETIME string into a time.Time.
func Decode[T any](records []Record) ([]T, error) {
	out := make([]T, 0, len(records))
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           &out,
		DecodeHook:       mapstructure.DecodeHookFuncType(stringToTime),
	})
	if err != nil {
		return nil, err
	}
	input := make([]map[string]any, len(records))
	for i, r := range records {
		input[i] = r
	}
	if err := dec.Decode(input); err != nil {
		return nil, fmt.Errorf("dialect/sql: decode: %w", err)
	}
	return out, nil
}

var timeType = reflect.TypeOf(time.Time{})

// stringToTime parses DATETIME, DATE and RFC 3339 strings into time.Time.
func stringToTime(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != timeType {
		return data, nil
	}
	s := reflect.ValueOf(data).String()
	if t, ok := ParseTime(s); ok {
		return t, nil
	}
	return data, nil
}

// ParseTime parses s using the layouts drivers return for temporal columns.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, sqliteTimeLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
