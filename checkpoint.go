// Project: A Heterogeneous-Agent Computational Analysis of Buffer-Stock Savings and General Equilibrium
// Model: EGM household policy solver coupled with a discretized wealth-distribution iteration

package main

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNoCheckpoint is returned when a named checkpoint (or one of its
// array fields) is absent from the store.
var ErrNoCheckpoint = errors.New("checkpoint not found")

// CheckpointStore persists Policy and Distribution arrays verbatim
// (row-major float64 blobs) in a local SQLite database so later runs can
// warm-start the fixed-point iterations. The core never touches this;
// it is a driver convenience.
type CheckpointStore struct {
	db *sql.DB
}

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	name       TEXT NOT NULL,
	field      TEXT NOT NULL,
	ne         INTEGER NOT NULL,
	na         INTEGER NOT NULL,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (name, field)
);`

// OpenCheckpointStore opens (or creates) the checkpoint database at path
// and initializes its schema.
func OpenCheckpointStore(path string) (*CheckpointStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(checkpointSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize checkpoint schema: %w", err)
	}

	return &CheckpointStore{db: db}, nil
}

// Close closes the underlying database.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}

// policyFields maps field names to the matrices they persist, in a fixed
// order so save and load agree.
func policyFields(pol *Policy) []struct {
	name string
	m    *mat.Dense
} {
	return []struct {
		name string
		m    *mat.Dense
	}{
		{"assets", pol.Assets},
		{"consumption", pol.Consumption},
		{"cash_on_hand", pol.CashOnHand},
		{"marginal_value", pol.MarginalValue},
	}
}

// SavePolicy upserts all four policy arrays under name.
func (s *CheckpointStore) SavePolicy(name string, pol *Policy) error {
	for _, f := range policyFields(pol) {
		if err := s.saveMatrix(name, f.name, f.m); err != nil {
			return err
		}
	}
	return nil
}

// LoadPolicy reads a previously saved policy of shape ne x na. Returns
// ErrNoCheckpoint if any field is missing.
func (s *CheckpointStore) LoadPolicy(name string, ne, na int) (*Policy, error) {
	pol := NewPolicy(ne, na)
	for _, f := range policyFields(pol) {
		if err := s.loadMatrix(name, f.name, f.m); err != nil {
			return nil, err
		}
	}
	return pol, nil
}

// SaveDistribution upserts a distribution under name.
func (s *CheckpointStore) SaveDistribution(name string, d *mat.Dense) error {
	return s.saveMatrix(name, "distribution", d)
}

// LoadDistribution reads a previously saved distribution of shape ne x na.
func (s *CheckpointStore) LoadDistribution(name string, ne, na int) (*mat.Dense, error) {
	d := mat.NewDense(ne, na, nil)
	if err := s.loadMatrix(name, "distribution", d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *CheckpointStore) saveMatrix(name, field string, m *mat.Dense) error {
	ne, na := m.Dims()
	blob := make([]byte, 8*ne*na)
	for e := 0; e < ne; e++ {
		row := m.RawRowView(e)
		for i, v := range row {
			binary.LittleEndian.PutUint64(blob[8*(e*na+i):], math.Float64bits(v))
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO checkpoints (name, field, ne, na, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, field) DO UPDATE SET
			ne = excluded.ne,
			na = excluded.na,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		name, field, ne, na, blob, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save checkpoint %s/%s: %w", name, field, err)
	}
	return nil
}

func (s *CheckpointStore) loadMatrix(name, field string, dst *mat.Dense) error {
	ne, na := dst.Dims()

	var gotNe, gotNa int
	var blob []byte
	err := s.db.QueryRow(`
		SELECT ne, na, data FROM checkpoints WHERE name = ? AND field = ?`,
		name, field).Scan(&gotNe, &gotNa, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrNoCheckpoint, name, field)
	}
	if err != nil {
		return fmt.Errorf("load checkpoint %s/%s: %w", name, field, err)
	}

	if gotNe != ne || gotNa != na {
		return fmt.Errorf("checkpoint %s/%s has shape %dx%d, want %dx%d (rebuild grids or drop the checkpoint)",
			name, field, gotNe, gotNa, ne, na)
	}
	if len(blob) != 8*ne*na {
		return fmt.Errorf("checkpoint %s/%s blob is %d bytes, want %d", name, field, len(blob), 8*ne*na)
	}

	for e := 0; e < ne; e++ {
		row := dst.RawRowView(e)
		for i := range row {
			row[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*(e*na+i):]))
		}
	}
	return nil
}
