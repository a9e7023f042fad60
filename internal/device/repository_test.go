package device

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the shade and
// scene tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE shades (
			device_url        TEXT PRIMARY KEY,
			address           TEXT NOT NULL UNIQUE,
			label             TEXT NOT NULL,
			controllable_name TEXT NOT NULL,
			room_id           TEXT NOT NULL DEFAULT '',
			capability_class  INTEGER NOT NULL,
			battery           INTEGER,
			rssi              INTEGER,
			position_primary  INTEGER,
			position_secondary INTEGER,
			position_tilt     INTEGER,
			online            INTEGER NOT NULL DEFAULT 1,
			updated_at        TEXT NOT NULL
		);
		CREATE TABLE scenes (
			oid        TEXT PRIMARY KEY,
			address    TEXT NOT NULL UNIQUE,
			label      TEXT NOT NULL,
			active     INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE scene_members (
			scene_oid    TEXT NOT NULL REFERENCES scenes(oid) ON DELETE CASCADE,
			device_url   TEXT NOT NULL,
			state_name   TEXT NOT NULL,
			target_value INTEGER NOT NULL,
			PRIMARY KEY (scene_oid, device_url, state_name)
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testShade creates a shade record for testing.
func testShade(deviceURL, address, label string) *Shade {
	primary := 100
	return &Shade{
		DeviceURL:        deviceURL,
		Address:          address,
		Label:            label,
		ControllableName: "io:RollerShutterGenericIOComponent",
		Capability:       ClassBottomUp,
		Positions:        Positions{Primary: &primary},
		Online:           true,
		UpdatedAt:        time.Now().UTC(),
	}
}

func TestSQLiteRepository_SaveAndListShades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	battery := 72
	rssi := -61
	shade := testShade("io://1234-5678-9012/11111111", "sh11111111", "Living Room")
	shade.Battery = &battery
	shade.RSSI = &rssi

	if err := repo.SaveShade(ctx, shade); err != nil {
		t.Fatalf("SaveShade() error = %v", err)
	}

	shades, err := repo.ListShades(ctx)
	if err != nil {
		t.Fatalf("ListShades() error = %v", err)
	}
	if len(shades) != 1 {
		t.Fatalf("ListShades() returned %d shades, want 1", len(shades))
	}

	got := shades[0]
	if got.DeviceURL != shade.DeviceURL {
		t.Errorf("DeviceURL = %q, want %q", got.DeviceURL, shade.DeviceURL)
	}
	if got.Address != "sh11111111" {
		t.Errorf("Address = %q, want %q", got.Address, "sh11111111")
	}
	if got.Battery == nil || *got.Battery != 72 {
		t.Errorf("Battery = %v, want 72", got.Battery)
	}
	if got.RSSI == nil || *got.RSSI != -61 {
		t.Errorf("RSSI = %v, want -61", got.RSSI)
	}
	if got.Positions.Primary == nil || *got.Positions.Primary != 100 {
		t.Errorf("Positions.Primary = %v, want 100", got.Positions.Primary)
	}
	if got.Positions.Secondary != nil {
		t.Errorf("Positions.Secondary = %v, want nil", got.Positions.Secondary)
	}
	if !got.Online {
		t.Error("Online = false, want true")
	}
}

func TestSQLiteRepository_SaveShadeUpsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	shade := testShade("io://1234-5678-9012/11111111", "sh11111111", "Living Room")
	if err := repo.SaveShade(ctx, shade); err != nil {
		t.Fatalf("SaveShade() error = %v", err)
	}

	// Second save with the same device URL replaces, not duplicates.
	shade.Label = "Lounge"
	newPos := 25
	shade.Positions.Primary = &newPos
	if err := repo.SaveShade(ctx, shade); err != nil {
		t.Fatalf("SaveShade() second save error = %v", err)
	}

	shades, err := repo.ListShades(ctx)
	if err != nil {
		t.Fatalf("ListShades() error = %v", err)
	}
	if len(shades) != 1 {
		t.Fatalf("ListShades() returned %d shades after upsert, want 1", len(shades))
	}
	if shades[0].Label != "Lounge" {
		t.Errorf("Label = %q, want %q", shades[0].Label, "Lounge")
	}
	if *shades[0].Positions.Primary != 25 {
		t.Errorf("Positions.Primary = %d, want 25", *shades[0].Positions.Primary)
	}
}

func TestSQLiteRepository_SaveShadeInvalid(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	if err := repo.SaveShade(context.Background(), &Shade{Address: "sh1"}); err != ErrInvalidRecord {
		t.Errorf("SaveShade(no device URL) error = %v, want ErrInvalidRecord", err)
	}
	if err := repo.SaveShade(context.Background(), nil); err != ErrInvalidRecord {
		t.Errorf("SaveShade(nil) error = %v, want ErrInvalidRecord", err)
	}
}

func TestSQLiteRepository_DeleteShade(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	shade := testShade("io://1234-5678-9012/11111111", "sh11111111", "Living Room")
	if err := repo.SaveShade(ctx, shade); err != nil {
		t.Fatalf("SaveShade() error = %v", err)
	}

	if err := repo.DeleteShade(ctx, shade.DeviceURL); err != nil {
		t.Fatalf("DeleteShade() error = %v", err)
	}

	shades, err := repo.ListShades(ctx)
	if err != nil {
		t.Fatalf("ListShades() error = %v", err)
	}
	if len(shades) != 0 {
		t.Errorf("ListShades() returned %d shades after delete, want 0", len(shades))
	}

	// Deleting an unknown shade is not an error.
	if err := repo.DeleteShade(ctx, "io://does/not/exist"); err != nil {
		t.Errorf("DeleteShade(unknown) error = %v, want nil", err)
	}
}

func TestSQLiteRepository_SaveAndListScenes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	scene := &Scene{
		OID:     "abc-123",
		Address: "sceneabc-123",
		Label:   "Movie Night",
		Active:  true,
		Members: []SceneMember{
			{DeviceURL: "io://g/1", StateName: "pos1", Target: 0},
			{DeviceURL: "io://g/1", StateName: "tilt", Target: 45},
			{DeviceURL: "io://g/2", StateName: "pos1", Target: 100},
		},
		UpdatedAt: time.Now().UTC(),
	}

	if err := repo.SaveScene(ctx, scene); err != nil {
		t.Fatalf("SaveScene() error = %v", err)
	}

	scenes, err := repo.ListScenes(ctx)
	if err != nil {
		t.Fatalf("ListScenes() error = %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("ListScenes() returned %d scenes, want 1", len(scenes))
	}

	got := scenes[0]
	if got.OID != "abc-123" {
		t.Errorf("OID = %q, want %q", got.OID, "abc-123")
	}
	if !got.Active {
		t.Error("Active = false, want true")
	}
	if len(got.Members) != 3 {
		t.Fatalf("len(Members) = %d, want 3", len(got.Members))
	}
	if got.Members[0].DeviceURL != "io://g/1" || got.Members[0].StateName != "pos1" {
		t.Errorf("Members[0] = %+v, want io://g/1 pos1", got.Members[0])
	}
	if got.Members[1].Target != 45 {
		t.Errorf("Members[1].Target = %d, want 45", got.Members[1].Target)
	}
}

func TestSQLiteRepository_SaveSceneReplacesMembers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	scene := &Scene{
		OID:     "abc-123",
		Address: "sceneabc-123",
		Label:   "Movie Night",
		Members: []SceneMember{
			{DeviceURL: "io://g/1", StateName: "pos1", Target: 0},
			{DeviceURL: "io://g/2", StateName: "pos1", Target: 100},
		},
	}
	if err := repo.SaveScene(ctx, scene); err != nil {
		t.Fatalf("SaveScene() error = %v", err)
	}

	scene.Members = []SceneMember{
		{DeviceURL: "io://g/3", StateName: "pos2", Target: 50},
	}
	if err := repo.SaveScene(ctx, scene); err != nil {
		t.Fatalf("SaveScene() second save error = %v", err)
	}

	scenes, err := repo.ListScenes(ctx)
	if err != nil {
		t.Fatalf("ListScenes() error = %v", err)
	}
	if len(scenes[0].Members) != 1 {
		t.Fatalf("len(Members) = %d after resave, want 1", len(scenes[0].Members))
	}
	if scenes[0].Members[0].DeviceURL != "io://g/3" {
		t.Errorf("Members[0].DeviceURL = %q, want %q", scenes[0].Members[0].DeviceURL, "io://g/3")
	}
}

func TestSQLiteRepository_DeleteSceneCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	scene := &Scene{
		OID:     "abc-123",
		Address: "sceneabc-123",
		Label:   "Movie Night",
		Members: []SceneMember{
			{DeviceURL: "io://g/1", StateName: "pos1", Target: 0},
		},
	}
	if err := repo.SaveScene(ctx, scene); err != nil {
		t.Fatalf("SaveScene() error = %v", err)
	}

	if err := repo.DeleteScene(ctx, "abc-123"); err != nil {
		t.Fatalf("DeleteScene() error = %v", err)
	}

	var members int
	if err := db.QueryRow("SELECT COUNT(*) FROM scene_members").Scan(&members); err != nil {
		t.Fatalf("counting members: %v", err)
	}
	if members != 0 {
		t.Errorf("scene_members count = %d after delete, want 0", members)
	}
}

func TestSQLiteRepository_ListScenesEmptyMembership(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	scene := &Scene{OID: "empty-1", Address: "sceneempty-1", Label: "Empty"}
	if err := repo.SaveScene(ctx, scene); err != nil {
		t.Fatalf("SaveScene() error = %v", err)
	}

	scenes, err := repo.ListScenes(ctx)
	if err != nil {
		t.Fatalf("ListScenes() error = %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("ListScenes() returned %d scenes, want 1", len(scenes))
	}
	if len(scenes[0].Members) != 0 {
		t.Errorf("len(Members) = %d, want 0", len(scenes[0].Members))
	}
}
