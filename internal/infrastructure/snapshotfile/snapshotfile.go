// Package snapshotfile reads ledger exports from JSON or TOML files so the
// integrity engine can run without a database.
package snapshotfile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pharmapos/backend/internal/domain/ledger"
)

// Format is a snapshot file encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// File is the on-disk layout of a ledger export. Transaction groups either carry
// their entries inline or leave them to the top-level entries list.
type File struct {
	Scope             ledger.Scope              `json:"scope" toml:"scope"`
	Accounts          []ledger.Account          `json:"accounts" toml:"accounts"`
	TransactionGroups []ledger.TransactionGroup `json:"transactionGroups" toml:"transactionGroups"`
	Entries           []ledger.Entry            `json:"entries" toml:"entries"`
}

// FormatFromPath picks the encoding from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported snapshot file %q: want .json or .toml", path)
	}
}

// Read opens and decodes a snapshot file
func Read(path string) (*File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	file, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// Decode parses a snapshot in the given encoding
func Decode(r io.Reader, format Format) (*File, error) {
	var file File
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&file); err != nil {
			return nil, fmt.Errorf("decode json snapshot: %w", err)
		}
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&file); err != nil {
			return nil, fmt.Errorf("decode toml snapshot: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}
	return &file, nil
}

// Loader serves the file's normalized ledger
func (f *File) Loader() *ledger.StaticSnapshotLoader {
	return ledger.NewStaticSnapshotLoader(f.Accounts, ledger.Normalize(f.TransactionGroups, f.Entries))
}

// Snapshot loads the file's ledger for scope. An empty owner falls back to the
// file's own scope, which in turn may be empty to take every record.
func (f *File) Snapshot(ctx context.Context, scope ledger.Scope) (*ledger.Snapshot, error) {
	if scope.OwnerID == "" {
		scope = f.Scope
	}
	return ledger.LoadSnapshot(ctx, f.Loader(), scope)
}
