package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/railwatch/crtm/internal/models"
)

// StationLoader fetches and parses the station table
type StationLoader func(ctx context.Context) (*models.StationTable, error)

// StationDirectory resolves station names and codes. The table is loaded on
// first use and kept for the process lifetime; a failed load is retried on
// the next lookup.
type StationDirectory struct {
	mu    sync.Mutex
	load  StationLoader
	table *models.StationTable
}

// NewStationDirectory creates a directory backed by load
func NewStationDirectory(load StationLoader) *StationDirectory {
	return &StationDirectory{load: load}
}

// Table returns the loaded station table, loading it if needed
func (d *StationDirectory) Table(ctx context.Context) (*models.StationTable, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.table != nil {
		return d.table, nil
	}
	table, err := d.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load station table: %w", err)
	}
	d.table = table
	return table, nil
}

// CodeOf returns the code for a station display name
func (d *StationDirectory) CodeOf(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", ErrMissingField("station")
	}
	table, err := d.Table(ctx)
	if err != nil {
		return "", err
	}
	code, ok := table.CodeOf(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrStationNotFound, name)
	}
	return code, nil
}

// NameOf returns the display name for a station code
func (d *StationDirectory) NameOf(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", ErrMissingField("station code")
	}
	table, err := d.Table(ctx)
	if err != nil {
		return "", err
	}
	name, ok := table.NameOf(code)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrStationNotFound, code)
	}
	return name, nil
}
