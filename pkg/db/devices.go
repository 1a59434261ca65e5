package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrDeviceNotFound = errors.New("device not found")

// DeviceRecord is a set-up device and its last known state.
type DeviceRecord struct {
	ID           string
	ProfileID    int64
	Name         string
	Type         string
	Protocol     string
	Manufacturer string
	Model        string
	AssumedState bool
	StateSchema  json.RawMessage
	State        map[string]any
	LastSeen     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeviceStore persists devices of a single profile.
type DeviceStore interface {
	Get(ctx context.Context, id string) (*DeviceRecord, error)
	Upsert(ctx context.Context, d *DeviceRecord) error
	SaveState(ctx context.Context, id string, state map[string]any) error
}

// Devices returns a DeviceStore scoped to profileID.
func (db *DB) Devices(profileID int64) DeviceStore {
	return &deviceStore{db: db, profileID: profileID}
}

type deviceStore struct {
	db        *DB
	profileID int64
}

const deviceColumns = `id, profile_id, name, type, protocol, manufacturer, model,
	assumed_state, state_schema, state, COALESCE(last_seen, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*DeviceRecord, error) {
	d := &DeviceRecord{}
	var schema, state, lastSeen, createdAt, updatedAt string
	err := row.Scan(&d.ID, &d.ProfileID, &d.Name, &d.Type, &d.Protocol, &d.Manufacturer, &d.Model,
		&d.AssumedState, &schema, &state, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	d.StateSchema = json.RawMessage(schema)
	if err := json.Unmarshal([]byte(state), &d.State); err != nil {
		return nil, fmt.Errorf("failed to decode state of device %s: %w", d.ID, err)
	}
	d.LastSeen, _ = time.Parse(time.DateTime, lastSeen)
	d.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	d.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return d, nil
}

func (s *deviceStore) Get(ctx context.Context, id string) (*DeviceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+`
		FROM devices WHERE profile_id = ? AND id = ?
	`, s.profileID, id)
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Upsert inserts or updates the device description. An existing stored
// state is kept unless d.State is set.
func (s *deviceStore) Upsert(ctx context.Context, d *DeviceRecord) error {
	schema := string(d.StateSchema)
	if schema == "" {
		schema = "{}"
	}
	var state *string
	if d.State != nil {
		b, err := json.Marshal(d.State)
		if err != nil {
			return fmt.Errorf("failed to encode state: %w", err)
		}
		str := string(b)
		state = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (id, profile_id, name, type, protocol, manufacturer, model,
			assumed_state, state_schema, state, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, '{}'), datetime('now'))
		ON CONFLICT (profile_id, id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			protocol = excluded.protocol,
			manufacturer = excluded.manufacturer,
			model = excluded.model,
			assumed_state = excluded.assumed_state,
			state_schema = excluded.state_schema,
			state = COALESCE(?, devices.state),
			last_seen = excluded.last_seen,
			updated_at = datetime('now')
	`, d.ID, s.profileID, d.Name, d.Type, d.Protocol, d.Manufacturer, d.Model,
		d.AssumedState, schema, state, state)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	d.ProfileID = s.profileID
	return nil
}

func (s *deviceStore) SaveState(ctx context.Context, id string, state map[string]any) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE devices SET state = ?, updated_at = datetime('now')
		WHERE profile_id = ? AND id = ?
	`, string(b), s.profileID, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}
