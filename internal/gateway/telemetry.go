package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/tagotip/tagotip/internal/codec"
)

// TelemetrySink persists decoded Push variables to Postgres, the
// end-of-the-line storage a real intake deployment would have behind the
// gateway's in-memory event bus and WebSocket stream.
type TelemetrySink struct {
	db *sql.DB
}

// NewTelemetrySink opens a Postgres connection and verifies it is live.
func NewTelemetrySink(dsn string) (*TelemetrySink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: ping database: %w", err)
	}
	return &TelemetrySink{db: db}, nil
}

// EnsureSchema creates the readings table if it does not already exist.
// Migrations in a real deployment would own this; a reference gateway
// does it inline so the demo runs against a bare Postgres instance.
func (s *TelemetrySink) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tagotip_readings (
	id          BIGSERIAL PRIMARY KEY,
	serial      TEXT NOT NULL,
	name        TEXT NOT NULL,
	value       TEXT NOT NULL,
	unit        TEXT,
	group_name  TEXT,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// RecordVariables inserts every variable of a decoded structured Push
// body as one row, tagged with the device serial that sent it.
func (s *TelemetrySink) RecordVariables(ctx context.Context, serial string, vars []codec.Variable) error {
	if len(vars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("telemetry: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO tagotip_readings (serial, name, value, unit, group_name, received_at)
VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("telemetry: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, v := range vars {
		unit := sql.NullString{String: v.Unit, Valid: v.HasUnit}
		group := sql.NullString{String: v.Group, Valid: v.HasGroup}
		if _, err := stmt.ExecContext(ctx, serial, v.Name, valueLexical(v.Value), unit, group, now); err != nil {
			return fmt.Errorf("telemetry: insert reading: %w", err)
		}
	}
	return tx.Commit()
}

// valueLexical renders a codec.Value's lexical form for storage, the
// same string the wire codec would have produced for it.
func valueLexical(v codec.Value) string {
	switch v.Op {
	case codec.OpNumber:
		return v.Number
	case codec.OpString:
		return v.Str
	case codec.OpBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case codec.OpLocation:
		if v.Location.HasAlt {
			return fmt.Sprintf("%s,%s,%s", v.Location.Lat, v.Location.Lng, v.Location.Alt)
		}
		return fmt.Sprintf("%s,%s", v.Location.Lat, v.Location.Lng)
	default:
		return ""
	}
}

// Close releases the underlying connection pool.
func (s *TelemetrySink) Close() error {
	return s.db.Close()
}

// record is a best-effort write: telemetry persistence must never block
// or fail an uplink's ack, so failures are logged and swallowed.
func (s *Server) recordTelemetry(serial string, push *codec.PushBody) {
	if s.telemetry == nil || push == nil || push.Structured == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.telemetry.RecordVariables(ctx, serial, push.Structured.Variables); err != nil {
		slog.Warn("telemetry write failed", "serial", serial, "error", err)
	}
}
