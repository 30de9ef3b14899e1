package repository

import (
	"database/sql"
	"fmt"
	"time"
)

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, err
}

// storedTimeLayout keeps every fractional digit so stored timestamps sort
// chronologically as text.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// nullableTime converts an optional time into a value for a nullable column.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func parseNullTime(raw sql.NullString, column string) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	parsed, err := parseTime(raw.String)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", column, err)
	}
	return &parsed, nil
}

func nullStringPtr(raw sql.NullString) *string {
	if !raw.Valid {
		return nil
	}
	value := raw.String
	return &value
}

type scanner interface {
	Scan(dest ...interface{}) error
}
