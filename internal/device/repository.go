package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository defines the persistence interface for shade and scene
// records. The registry persists records wholesale; there are no
// partial-update methods. This abstraction allows for different
// implementations (SQLite, mock) and enables unit testing without
// database dependencies.
type Repository interface {
	// ListShades retrieves every persisted shade record.
	ListShades(ctx context.Context) ([]Shade, error)

	// ListScenes retrieves every persisted scene record including
	// membership lists.
	ListScenes(ctx context.Context) ([]Scene, error)

	// SaveShade inserts or replaces a shade record.
	SaveShade(ctx context.Context, shade *Shade) error

	// SaveScene inserts or replaces a scene record and its members.
	SaveScene(ctx context.Context, scene *Scene) error

	// DeleteShade removes a shade by device URL. Deleting an unknown
	// shade is not an error.
	DeleteShade(ctx context.Context, deviceURL string) error

	// DeleteScene removes a scene and its members by OID. Deleting an
	// unknown scene is not an error.
	DeleteScene(ctx context.Context, oid string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// ListShades retrieves every persisted shade record.
func (r *SQLiteRepository) ListShades(ctx context.Context) ([]Shade, error) {
	query := `
		SELECT device_url, address, label, controllable_name, room_id,
			capability_class, battery, rssi,
			position_primary, position_secondary, position_tilt,
			online, updated_at
		FROM shades
		ORDER BY address`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying shades: %w", err)
	}
	defer rows.Close()

	var shades []Shade
	for rows.Next() {
		shade, err := scanShade(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning shade: %w", err)
		}
		shades = append(shades, *shade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shades: %w", err)
	}

	return shades, nil
}

// ListScenes retrieves every persisted scene record with members.
func (r *SQLiteRepository) ListScenes(ctx context.Context) ([]Scene, error) {
	query := `
		SELECT oid, address, label, active, updated_at
		FROM scenes
		ORDER BY address`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying scenes: %w", err)
	}
	defer rows.Close()

	var scenes []Scene
	byOID := make(map[string]int)
	for rows.Next() {
		var s Scene
		var active int
		var updatedAt string
		if err := rows.Scan(&s.OID, &s.Address, &s.Label, &active, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning scene: %w", err)
		}
		s.Active = active != 0
		s.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing scene updated_at: %w", err)
		}
		byOID[s.OID] = len(scenes)
		scenes = append(scenes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenes: %w", err)
	}

	// Attach membership lists. Rowid order preserves gateway order
	// because members are reinserted wholesale on every save.
	memberRows, err := r.db.QueryContext(ctx, `
		SELECT scene_oid, device_url, state_name, target_value
		FROM scene_members
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying scene members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var oid string
		var m SceneMember
		if err := memberRows.Scan(&oid, &m.DeviceURL, &m.StateName, &m.Target); err != nil {
			return nil, fmt.Errorf("scanning scene member: %w", err)
		}
		if idx, ok := byOID[oid]; ok {
			scenes[idx].Members = append(scenes[idx].Members, m)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scene members: %w", err)
	}

	return scenes, nil
}

// SaveShade inserts or replaces a shade record.
func (r *SQLiteRepository) SaveShade(ctx context.Context, shade *Shade) error {
	if shade == nil || shade.DeviceURL == "" {
		return ErrInvalidRecord
	}

	query := `
		INSERT INTO shades (
			device_url, address, label, controllable_name, room_id,
			capability_class, battery, rssi,
			position_primary, position_secondary, position_tilt,
			online, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_url) DO UPDATE SET
			address = excluded.address,
			label = excluded.label,
			controllable_name = excluded.controllable_name,
			room_id = excluded.room_id,
			capability_class = excluded.capability_class,
			battery = excluded.battery,
			rssi = excluded.rssi,
			position_primary = excluded.position_primary,
			position_secondary = excluded.position_secondary,
			position_tilt = excluded.position_tilt,
			online = excluded.online,
			updated_at = excluded.updated_at`

	updatedAt := shade.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		shade.DeviceURL,
		shade.Address,
		shade.Label,
		shade.ControllableName,
		shade.RoomID,
		int(shade.Capability),
		nullableInt(shade.Battery),
		nullableInt(shade.RSSI),
		nullableInt(shade.Positions.Primary),
		nullableInt(shade.Positions.Secondary),
		nullableInt(shade.Positions.Tilt),
		boolToInt(shade.Online),
		updatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving shade: %w", err)
	}
	return nil
}

// SaveScene inserts or replaces a scene record and its members.
// The record and membership rows are written in one transaction so a
// crash never leaves a scene with half its members.
func (r *SQLiteRepository) SaveScene(ctx context.Context, scene *Scene) error {
	if scene == nil || scene.OID == "" {
		return ErrInvalidRecord
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	updatedAt := scene.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scenes (oid, address, label, active, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(oid) DO UPDATE SET
			address = excluded.address,
			label = excluded.label,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		scene.OID,
		scene.Address,
		scene.Label,
		boolToInt(scene.Active),
		updatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving scene: %w", err)
	}

	// Membership is replaced wholesale.
	if _, err := tx.ExecContext(ctx, "DELETE FROM scene_members WHERE scene_oid = ?", scene.OID); err != nil {
		return fmt.Errorf("clearing scene members: %w", err)
	}
	for _, m := range scene.Members {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scene_members (scene_oid, device_url, state_name, target_value)
			VALUES (?, ?, ?, ?)`,
			scene.OID, m.DeviceURL, m.StateName, m.Target,
		)
		if err != nil {
			return fmt.Errorf("saving scene member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing scene: %w", err)
	}
	return nil
}

// DeleteShade removes a shade by device URL.
func (r *SQLiteRepository) DeleteShade(ctx context.Context, deviceURL string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM shades WHERE device_url = ?", deviceURL); err != nil {
		return fmt.Errorf("deleting shade: %w", err)
	}
	return nil
}

// DeleteScene removes a scene and its members by OID.
func (r *SQLiteRepository) DeleteScene(ctx context.Context, oid string) error {
	// scene_members rows cascade.
	if _, err := r.db.ExecContext(ctx, "DELETE FROM scenes WHERE oid = ?", oid); err != nil {
		return fmt.Errorf("deleting scene: %w", err)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanShade scans one row into a Shade.
func scanShade(scanner rowScanner) (*Shade, error) {
	var s Shade
	var capClass int
	var battery, rssi, posPrimary, posSecondary, posTilt sql.NullInt64
	var online int
	var updatedAt string

	err := scanner.Scan(
		&s.DeviceURL,
		&s.Address,
		&s.Label,
		&s.ControllableName,
		&s.RoomID,
		&capClass,
		&battery,
		&rssi,
		&posPrimary,
		&posSecondary,
		&posTilt,
		&online,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Capability = CapabilityClass(capClass)
	s.Battery = nullIntPtr(battery)
	s.RSSI = nullIntPtr(rssi)
	s.Positions = Positions{
		Primary:   nullIntPtr(posPrimary),
		Secondary: nullIntPtr(posSecondary),
		Tilt:      nullIntPtr(posTilt),
	}
	s.Online = online != 0

	s.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &s, nil
}

// nullableInt returns a sql.NullInt64 for optional int pointers.
func nullableInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// nullIntPtr converts a nullable column back to an optional int.
func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
