package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// memoryRepo is an in-memory Repository for registry tests.
type memoryRepo struct {
	mu     sync.Mutex
	shades map[string]Shade
	scenes map[string]Scene
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		shades: make(map[string]Shade),
		scenes: make(map[string]Scene),
	}
}

func (m *memoryRepo) ListShades(ctx context.Context) ([]Shade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Shade, 0, len(m.shades))
	for _, s := range m.shades {
		out = append(out, *s.DeepCopy())
	}
	return out, nil
}

func (m *memoryRepo) ListScenes(ctx context.Context) ([]Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Scene, 0, len(m.scenes))
	for _, s := range m.scenes {
		out = append(out, *s.DeepCopy())
	}
	return out, nil
}

func (m *memoryRepo) SaveShade(ctx context.Context, shade *Shade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shades[shade.DeviceURL] = *shade.DeepCopy()
	return nil
}

func (m *memoryRepo) SaveScene(ctx context.Context, scene *Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenes[scene.OID] = *scene.DeepCopy()
	return nil
}

func (m *memoryRepo) DeleteShade(ctx context.Context, deviceURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.shades, deviceURL)
	return nil
}

func (m *memoryRepo) DeleteScene(ctx context.Context, oid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scenes, oid)
	return nil
}

func registryShade(deviceURL, address string) *Shade {
	return &Shade{
		DeviceURL:        deviceURL,
		Address:          address,
		Label:            "Test Shade",
		ControllableName: "io:RollerShutterGenericIOComponent",
		Capability:       ClassBottomUp,
		Online:           true,
	}
}

func TestRegistry_UpsertAndGetShade(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())
	ctx := context.Background()

	shade := registryShade("io://g/1", "sh1")
	if err := reg.UpsertShade(ctx, shade); err != nil {
		t.Fatalf("UpsertShade() error = %v", err)
	}

	got, err := reg.GetShade("sh1")
	if err != nil {
		t.Fatalf("GetShade() error = %v", err)
	}
	if got.DeviceURL != "io://g/1" {
		t.Errorf("DeviceURL = %q, want %q", got.DeviceURL, "io://g/1")
	}

	byURL, err := reg.GetShadeByURL("io://g/1")
	if err != nil {
		t.Fatalf("GetShadeByURL() error = %v", err)
	}
	if byURL.Address != "sh1" {
		t.Errorf("Address = %q, want %q", byURL.Address, "sh1")
	}
}

func TestRegistry_GetShadeNotFound(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())

	if _, err := reg.GetShade("sh404"); !errors.Is(err, ErrShadeNotFound) {
		t.Errorf("GetShade(unknown) error = %v, want ErrShadeNotFound", err)
	}
	if _, err := reg.GetShadeByURL("io://missing"); !errors.Is(err, ErrShadeNotFound) {
		t.Errorf("GetShadeByURL(unknown) error = %v, want ErrShadeNotFound", err)
	}
}

func TestRegistry_UpsertShadeAddressCollision(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())
	ctx := context.Background()

	if err := reg.UpsertShade(ctx, registryShade("io://g/1", "sh1")); err != nil {
		t.Fatalf("UpsertShade() error = %v", err)
	}

	err := reg.UpsertShade(ctx, registryShade("io://g/2", "sh1"))
	if !errors.Is(err, ErrShadeExists) {
		t.Errorf("UpsertShade(colliding address) error = %v, want ErrShadeExists", err)
	}

	// Re-upsert of the same device URL is fine.
	if err := reg.UpsertShade(ctx, registryShade("io://g/1", "sh1")); err != nil {
		t.Errorf("UpsertShade(same device) error = %v", err)
	}
}

func TestRegistry_UpsertShadeInvalid(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())
	ctx := context.Background()

	if err := reg.UpsertShade(ctx, nil); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("UpsertShade(nil) error = %v, want ErrInvalidRecord", err)
	}
	if err := reg.UpsertShade(ctx, &Shade{DeviceURL: "io://g/1"}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("UpsertShade(no address) error = %v, want ErrInvalidRecord", err)
	}
}

func TestRegistry_DeepCopyIsolation(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())
	ctx := context.Background()

	if err := reg.UpsertShade(ctx, registryShade("io://g/1", "sh1")); err != nil {
		t.Fatalf("UpsertShade() error = %v", err)
	}

	got, _ := reg.GetShade("sh1")
	got.Label = "Mutated"
	pos := 42
	got.Positions.Primary = &pos

	fresh, _ := reg.GetShade("sh1")
	if fresh.Label != "Test Shade" {
		t.Errorf("Label = %q after external mutation, want %q", fresh.Label, "Test Shade")
	}
	if fresh.Positions.Primary != nil {
		t.Errorf("Positions.Primary = %v after external mutation, want nil", fresh.Positions.Primary)
	}
}

func TestRegistry_UpdatePositionsMerges(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())
	ctx := context.Background()

	if err := reg.UpsertShade(ctx, registryShade("io://g/1", "sh1")); err != nil {
		t.Fatalf("UpsertShade() error = %v", err)
	}

	primary := 100
	if err := reg.UpdatePositions(ctx, "io://g/1", Positions{Primary: &primary}); err != nil {
		t.Fatalf("UpdatePositions() error = %v", err)
	}

	// A later partial report must not clobber the primary reading.
	tilt := 45
	if err := reg.UpdatePositions(ctx, "io://g/1", Positions{Tilt: &tilt}); err != nil {
		t.Fatalf("UpdatePositions() error = %v", err)
	}

	got, _ := reg.GetShade("sh1")
	if got.Positions.Primary == nil || *got.Positions.Primary != 100 {
		t.Errorf("Positions.Primary = %v, want 100", got.Positions.Primary)
	}
	if got.Positions.Tilt == nil || *got.Positions.Tilt != 45 {
		t.Errorf("Positions.Tilt = %v, want 45", got.Positions.Tilt)
	}

	if err := reg.UpdatePositions(ctx, "io://missing", Positions{}); !errors.Is(err, ErrShadeNotFound) {
		t.Errorf("UpdatePositions(unknown) error = %v, want ErrShadeNotFound", err)
	}
}

func TestRegistry_ShadeFieldSetters(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())
	ctx := context.Background()

	if err := reg.UpsertShade(ctx, registryShade("io://g/1", "sh1")); err != nil {
		t.Fatalf("UpsertShade() error = %v", err)
	}

	if err := reg.SetBattery(ctx, "io://g/1", 64); err != nil {
		t.Fatalf("SetBattery() error = %v", err)
	}
	if err := reg.SetSignal(ctx, "io://g/1", -70); err != nil {
		t.Fatalf("SetSignal() error = %v", err)
	}
	if err := reg.SetOnline(ctx, "io://g/1", false); err != nil {
		t.Fatalf("SetOnline() error = %v", err)
	}
	if err := reg.SetMoving("io://g/1", true); err != nil {
		t.Fatalf("SetMoving() error = %v", err)
	}

	got, _ := reg.GetShade("sh1")
	if got.Battery == nil || *got.Battery != 64 {
		t.Errorf("Battery = %v, want 64", got.Battery)
	}
	if got.RSSI == nil || *got.RSSI != -70 {
		t.Errorf("RSSI = %v, want -70", got.RSSI)
	}
	if got.Online {
		t.Error("Online = true, want false")
	}
	if !got.Moving {
		t.Error("Moving = false, want true")
	}
}

func TestRegistry_RemoveShade(t *testing.T) {
	repo := newMemoryRepo()
	reg := NewRegistry(repo)
	ctx := context.Background()

	if err := reg.UpsertShade(ctx, registryShade("io://g/1", "sh1")); err != nil {
		t.Fatalf("UpsertShade() error = %v", err)
	}
	if err := reg.RemoveShade(ctx, "sh1"); err != nil {
		t.Fatalf("RemoveShade() error = %v", err)
	}

	if _, err := reg.GetShade("sh1"); !errors.Is(err, ErrShadeNotFound) {
		t.Errorf("GetShade() after remove error = %v, want ErrShadeNotFound", err)
	}
	if _, err := reg.GetShadeByURL("io://g/1"); !errors.Is(err, ErrShadeNotFound) {
		t.Errorf("GetShadeByURL() after remove error = %v, want ErrShadeNotFound", err)
	}
	if len(repo.shades) != 0 {
		t.Errorf("repo has %d shades after remove, want 0", len(repo.shades))
	}

	if err := reg.RemoveShade(ctx, "sh1"); !errors.Is(err, ErrShadeNotFound) {
		t.Errorf("RemoveShade() second call error = %v, want ErrShadeNotFound", err)
	}
}

func TestRegistry_SceneLifecycle(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())
	ctx := context.Background()

	scene := &Scene{
		OID:     "abc-123",
		Address: "sceneabc-123",
		Label:   "Movie Night",
		Members: []SceneMember{
			{DeviceURL: "io://g/1", StateName: "pos1", Target: 0},
		},
	}
	if err := reg.UpsertScene(ctx, scene); err != nil {
		t.Fatalf("UpsertScene() error = %v", err)
	}

	got, err := reg.GetScene("sceneabc-123")
	if err != nil {
		t.Fatalf("GetScene() error = %v", err)
	}
	if got.Label != "Movie Night" {
		t.Errorf("Label = %q, want %q", got.Label, "Movie Night")
	}

	byOID, err := reg.GetSceneByOID("abc-123")
	if err != nil {
		t.Fatalf("GetSceneByOID() error = %v", err)
	}
	if byOID.Address != "sceneabc-123" {
		t.Errorf("Address = %q, want %q", byOID.Address, "sceneabc-123")
	}

	if err := reg.RemoveScene(ctx, "sceneabc-123"); err != nil {
		t.Fatalf("RemoveScene() error = %v", err)
	}
	if _, err := reg.GetSceneByOID("abc-123"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("GetSceneByOID() after remove error = %v, want ErrSceneNotFound", err)
	}
}

func TestRegistry_ScenesForDevice(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())
	ctx := context.Background()

	scenes := []*Scene{
		{OID: "a", Address: "scenea", Members: []SceneMember{{DeviceURL: "io://g/1", StateName: "pos1", Target: 0}}},
		{OID: "b", Address: "sceneb", Members: []SceneMember{{DeviceURL: "io://g/2", StateName: "pos1", Target: 0}}},
		{OID: "c", Address: "scenec", Members: []SceneMember{
			{DeviceURL: "io://g/1", StateName: "tilt", Target: 45},
			{DeviceURL: "io://g/2", StateName: "pos1", Target: 100},
		}},
	}
	for _, s := range scenes {
		if err := reg.UpsertScene(ctx, s); err != nil {
			t.Fatalf("UpsertScene(%s) error = %v", s.OID, err)
		}
	}

	got := reg.ScenesForDevice("io://g/1")
	if len(got) != 2 {
		t.Fatalf("ScenesForDevice() returned %d scenes, want 2", len(got))
	}
	oids := map[string]bool{}
	for _, s := range got {
		oids[s.OID] = true
	}
	if !oids["a"] || !oids["c"] {
		t.Errorf("ScenesForDevice() OIDs = %v, want a and c", oids)
	}
}

func TestRegistry_SceneActivity(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())
	ctx := context.Background()

	scene := &Scene{OID: "abc", Address: "sceneabc", Label: "Morning"}
	if err := reg.UpsertScene(ctx, scene); err != nil {
		t.Fatalf("UpsertScene() error = %v", err)
	}

	was, err := reg.SetSceneActive(ctx, "abc", true)
	if err != nil {
		t.Fatalf("SetSceneActive() error = %v", err)
	}
	if was {
		t.Error("first SetSceneActive() wasActive = true, want false")
	}

	was, err = reg.SetSceneActive(ctx, "abc", false)
	if err != nil {
		t.Fatalf("SetSceneActive() error = %v", err)
	}
	if !was {
		t.Error("second SetSceneActive() wasActive = false, want true")
	}

	if _, err := reg.SetSceneActive(ctx, "missing", true); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("SetSceneActive(unknown) error = %v, want ErrSceneNotFound", err)
	}
}

func TestRegistry_GatewayActiveSet(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())

	if reg.GatewayActive("abc") {
		t.Error("GatewayActive() = true before any report, want false")
	}
	reg.SetGatewayActive("abc", true)
	if !reg.GatewayActive("abc") {
		t.Error("GatewayActive() = false after activation, want true")
	}
	reg.SetGatewayActive("abc", false)
	if reg.GatewayActive("abc") {
		t.Error("GatewayActive() = true after deactivation, want false")
	}
}

func TestRegistry_Load(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	seed := NewRegistry(repo)
	if err := seed.UpsertShade(ctx, registryShade("io://g/1", "sh1")); err != nil {
		t.Fatalf("UpsertShade() error = %v", err)
	}
	if err := seed.UpsertScene(ctx, &Scene{OID: "abc", Address: "sceneabc", Label: "Morning"}); err != nil {
		t.Fatalf("UpsertScene() error = %v", err)
	}

	// Fresh registry over the same repo sees the persisted records.
	reg := NewRegistry(repo)
	if err := reg.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := reg.GetShade("sh1"); err != nil {
		t.Errorf("GetShade() after Load error = %v", err)
	}
	if _, err := reg.GetSceneByOID("abc"); err != nil {
		t.Errorf("GetSceneByOID() after Load error = %v", err)
	}

	stats := reg.GetStats()
	if stats.Shades != 1 || stats.Scenes != 1 {
		t.Errorf("GetStats() = %+v, want 1 shade and 1 scene", stats)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry(newMemoryRepo())
	ctx := context.Background()

	if err := reg.UpsertShade(ctx, registryShade("io://g/1", "sh1")); err != nil {
		t.Fatalf("UpsertShade() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			pos := n
			_ = reg.UpdatePositions(ctx, "io://g/1", Positions{Primary: &pos})
			_, _ = reg.GetShade("sh1")
			reg.ListShades()
		}(i)
	}
	wg.Wait()

	got, err := reg.GetShade("sh1")
	if err != nil {
		t.Fatalf("GetShade() error = %v", err)
	}
	if got.Positions.Primary == nil {
		t.Error("Positions.Primary = nil after concurrent updates")
	}
}
