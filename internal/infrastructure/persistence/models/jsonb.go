package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/pharmapos/backend/internal/domain/ledger"
)

func jsonBytes(value any, typeName string) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("failed to scan " + typeName + ": unsupported type")
	}
}

// StringList is a JSONB array of strings
type StringList []string

// Value implements driver.Valuer for GORM to write JSONB
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	data, err := jsonBytes(value, "StringList")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// EmbeddedEntries holds entries stored inline on a transaction group.
// A NULL column means the group keeps its entries in the standalone table.
type EmbeddedEntries []ledger.Entry

// Value implements driver.Valuer. Empty lists are written as NULL.
func (e EmbeddedEntries) Value() (driver.Value, error) {
	if len(e) == 0 {
		return nil, nil
	}
	return json.Marshal([]ledger.Entry(e))
}

// Scan implements sql.Scanner. Entry account references may be ids or objects.
func (e *EmbeddedEntries) Scan(value any) error {
	if value == nil {
		*e = nil
		return nil
	}
	data, err := jsonBytes(value, "EmbeddedEntries")
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		*e = nil
		return nil
	}
	var entries []ledger.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*e = entries
	return nil
}
