package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the last-known canonical records for every shade and
// scene, plus the two activity views of each scene: what we calculated
// locally and what the gateway last reported. A single mutex guards all
// of it so a scene evaluation sees member positions and activity sets
// from the same instant.
//
// Records handed out are deep copies; callers can never mutate the
// registry's own state. Mutations persist wholesale through the
// Repository so the status surface has data across restarts.
//
// All public methods are thread-safe.
type Registry struct {
	mu sync.Mutex

	shades      map[string]*Shade // by local address
	shadesByURL map[string]*Shade // same records, by device URL
	scenes      map[string]*Scene // by local address
	scenesByOID map[string]*Scene // same records, by OID

	// gatewayActive is the set of scene OIDs the gateway itself last
	// reported as active. Kept only in memory; used as a consistency
	// check against our own calculation, never as a correction.
	gatewayActive map[string]bool

	repo   Repository
	logger Logger
}

// NewRegistry creates a registry backed by the given repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		shades:        make(map[string]*Shade),
		shadesByURL:   make(map[string]*Shade),
		scenes:        make(map[string]*Scene),
		scenesByOID:   make(map[string]*Scene),
		gatewayActive: make(map[string]bool),
		repo:          repo,
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load replaces the in-memory records with everything persisted in the
// repository. Called once at startup, before the first reconcile, so
// the status surface has data while the gateway connect is still in
// flight.
func (r *Registry) Load(ctx context.Context) error {
	shades, err := r.repo.ListShades(ctx)
	if err != nil {
		return fmt.Errorf("loading shades: %w", err)
	}
	scenes, err := r.repo.ListScenes(ctx)
	if err != nil {
		return fmt.Errorf("loading scenes: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.shades = make(map[string]*Shade, len(shades))
	r.shadesByURL = make(map[string]*Shade, len(shades))
	for i := range shades {
		s := shades[i].DeepCopy()
		r.shades[s.Address] = s
		r.shadesByURL[s.DeviceURL] = s
	}

	r.scenes = make(map[string]*Scene, len(scenes))
	r.scenesByOID = make(map[string]*Scene, len(scenes))
	for i := range scenes {
		s := scenes[i].DeepCopy()
		r.scenes[s.Address] = s
		r.scenesByOID[s.OID] = s
	}

	r.logger.Info("registry loaded", "shades", len(shades), "scenes", len(scenes))
	return nil
}

// UpsertShade inserts or replaces a shade record wholesale and
// persists it. Returns ErrShadeExists when the address belongs to a
// different device URL.
func (r *Registry) UpsertShade(ctx context.Context, shade *Shade) error {
	if shade == nil || shade.DeviceURL == "" || shade.Address == "" {
		return ErrInvalidRecord
	}

	r.mu.Lock()
	if existing, ok := r.shades[shade.Address]; ok && existing.DeviceURL != shade.DeviceURL {
		r.mu.Unlock()
		return fmt.Errorf("%w: address %q held by %q", ErrShadeExists, shade.Address, existing.DeviceURL)
	}
	stored := shade.DeepCopy()
	stored.UpdatedAt = time.Now().UTC()
	r.shades[stored.Address] = stored
	r.shadesByURL[stored.DeviceURL] = stored
	snapshot := stored.DeepCopy()
	r.mu.Unlock()

	if err := r.repo.SaveShade(ctx, snapshot); err != nil {
		return fmt.Errorf("persisting shade %s: %w", snapshot.Address, err)
	}

	r.logger.Debug("shade upserted", "address", snapshot.Address, "label", snapshot.Label)
	return nil
}

// GetShade retrieves a shade by local address.
// The returned record is a deep copy; callers can safely modify it.
func (r *Registry) GetShade(address string) (*Shade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shades[address]
	if !ok {
		return nil, ErrShadeNotFound
	}
	return s.DeepCopy(), nil
}

// GetShadeByURL retrieves a shade by its gateway device URL.
// The returned record is a deep copy; callers can safely modify it.
func (r *Registry) GetShadeByURL(deviceURL string) (*Shade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shadesByURL[deviceURL]
	if !ok {
		return nil, ErrShadeNotFound
	}
	return s.DeepCopy(), nil
}

// ListShades returns deep copies of every shade record.
func (r *Registry) ListShades() []Shade {
	r.mu.Lock()
	defer r.mu.Unlock()

	shades := make([]Shade, 0, len(r.shades))
	for _, s := range r.shades {
		shades = append(shades, *s.DeepCopy())
	}
	return shades
}

// RemoveShade deletes a shade by address, both in memory and from the
// repository. Returns ErrShadeNotFound if the address is unknown.
func (r *Registry) RemoveShade(ctx context.Context, address string) error {
	r.mu.Lock()
	s, ok := r.shades[address]
	if !ok {
		r.mu.Unlock()
		return ErrShadeNotFound
	}
	deviceURL := s.DeviceURL
	delete(r.shades, address)
	delete(r.shadesByURL, deviceURL)
	r.mu.Unlock()

	if err := r.repo.DeleteShade(ctx, deviceURL); err != nil {
		return fmt.Errorf("deleting shade %s: %w", address, err)
	}

	r.logger.Info("shade removed", "address", address)
	return nil
}

// UpdatePositions merges the non-nil axes of p into the shade's
// position record. Axes the gateway did not report in this event keep
// their previous readings.
func (r *Registry) UpdatePositions(ctx context.Context, deviceURL string, p Positions) error {
	return r.mutateShade(ctx, deviceURL, func(s *Shade) {
		if p.Primary != nil {
			s.Positions.Primary = copyIntPtr(p.Primary)
		}
		if p.Secondary != nil {
			s.Positions.Secondary = copyIntPtr(p.Secondary)
		}
		if p.Tilt != nil {
			s.Positions.Tilt = copyIntPtr(p.Tilt)
		}
	})
}

// SetBattery updates a shade's last-reported battery level.
func (r *Registry) SetBattery(ctx context.Context, deviceURL string, level int) error {
	return r.mutateShade(ctx, deviceURL, func(s *Shade) {
		s.Battery = &level
	})
}

// SetSignal updates a shade's last-reported radio signal strength.
func (r *Registry) SetSignal(ctx context.Context, deviceURL string, rssi int) error {
	return r.mutateShade(ctx, deviceURL, func(s *Shade) {
		s.RSSI = &rssi
	})
}

// SetOnline updates a shade's reachability flag.
func (r *Registry) SetOnline(ctx context.Context, deviceURL string, online bool) error {
	return r.mutateShade(ctx, deviceURL, func(s *Shade) {
		s.Online = online
	})
}

// SetMoving flips a shade's in-motion flag. Memory only; motion is
// transient and not worth a disk write.
func (r *Registry) SetMoving(deviceURL string, moving bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shadesByURL[deviceURL]
	if !ok {
		return ErrShadeNotFound
	}
	s.Moving = moving
	return nil
}

// mutateShade applies fn to the live record under the lock, then
// persists a snapshot outside it.
func (r *Registry) mutateShade(ctx context.Context, deviceURL string, fn func(*Shade)) error {
	r.mu.Lock()
	s, ok := r.shadesByURL[deviceURL]
	if !ok {
		r.mu.Unlock()
		return ErrShadeNotFound
	}
	fn(s)
	s.UpdatedAt = time.Now().UTC()
	snapshot := s.DeepCopy()
	r.mu.Unlock()

	if err := r.repo.SaveShade(ctx, snapshot); err != nil {
		return fmt.Errorf("persisting shade %s: %w", snapshot.Address, err)
	}
	return nil
}

// UpsertScene inserts or replaces a scene record wholesale and
// persists it. Returns ErrSceneExists when the address belongs to a
// different OID.
func (r *Registry) UpsertScene(ctx context.Context, scene *Scene) error {
	if scene == nil || scene.OID == "" || scene.Address == "" {
		return ErrInvalidRecord
	}

	r.mu.Lock()
	if existing, ok := r.scenes[scene.Address]; ok && existing.OID != scene.OID {
		r.mu.Unlock()
		return fmt.Errorf("%w: address %q held by %q", ErrSceneExists, scene.Address, existing.OID)
	}
	stored := scene.DeepCopy()
	stored.UpdatedAt = time.Now().UTC()
	r.scenes[stored.Address] = stored
	r.scenesByOID[stored.OID] = stored
	snapshot := stored.DeepCopy()
	r.mu.Unlock()

	if err := r.repo.SaveScene(ctx, snapshot); err != nil {
		return fmt.Errorf("persisting scene %s: %w", snapshot.Address, err)
	}

	r.logger.Debug("scene upserted", "address", snapshot.Address, "label", snapshot.Label)
	return nil
}

// GetScene retrieves a scene by local address.
// The returned record is a deep copy; callers can safely modify it.
func (r *Registry) GetScene(address string) (*Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scenes[address]
	if !ok {
		return nil, ErrSceneNotFound
	}
	return s.DeepCopy(), nil
}

// GetSceneByOID retrieves a scene by its gateway OID.
// The returned record is a deep copy; callers can safely modify it.
func (r *Registry) GetSceneByOID(oid string) (*Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scenesByOID[oid]
	if !ok {
		return nil, ErrSceneNotFound
	}
	return s.DeepCopy(), nil
}

// ListScenes returns deep copies of every scene record.
func (r *Registry) ListScenes() []Scene {
	r.mu.Lock()
	defer r.mu.Unlock()

	scenes := make([]Scene, 0, len(r.scenes))
	for _, s := range r.scenes {
		scenes = append(scenes, *s.DeepCopy())
	}
	return scenes
}

// ScenesForDevice returns deep copies of every scene whose membership
// includes the given device URL.
func (r *Registry) ScenesForDevice(deviceURL string) []Scene {
	r.mu.Lock()
	defer r.mu.Unlock()

	var scenes []Scene
	for _, s := range r.scenes {
		if s.HasMember(deviceURL) {
			scenes = append(scenes, *s.DeepCopy())
		}
	}
	return scenes
}

// RemoveScene deletes a scene by address, both in memory and from the
// repository. Returns ErrSceneNotFound if the address is unknown.
func (r *Registry) RemoveScene(ctx context.Context, address string) error {
	r.mu.Lock()
	s, ok := r.scenes[address]
	if !ok {
		r.mu.Unlock()
		return ErrSceneNotFound
	}
	oid := s.OID
	delete(r.scenes, address)
	delete(r.scenesByOID, oid)
	delete(r.gatewayActive, oid)
	r.mu.Unlock()

	if err := r.repo.DeleteScene(ctx, oid); err != nil {
		return fmt.Errorf("deleting scene %s: %w", address, err)
	}

	r.logger.Info("scene removed", "address", address)
	return nil
}

// SetSceneActive records the locally calculated activity state for a
// scene and persists it. Returns the previous state so callers can
// tell whether an edge occurred.
func (r *Registry) SetSceneActive(ctx context.Context, oid string, active bool) (wasActive bool, err error) {
	r.mu.Lock()
	s, ok := r.scenesByOID[oid]
	if !ok {
		r.mu.Unlock()
		return false, ErrSceneNotFound
	}
	wasActive = s.Active
	s.Active = active
	s.UpdatedAt = time.Now().UTC()
	snapshot := s.DeepCopy()
	r.mu.Unlock()

	if err := r.repo.SaveScene(ctx, snapshot); err != nil {
		return wasActive, fmt.Errorf("persisting scene %s: %w", snapshot.Address, err)
	}
	return wasActive, nil
}

// SetGatewayActive records what the gateway itself reported for a
// scene. Memory only; this set exists to be compared against our own
// calculation.
func (r *Registry) SetGatewayActive(oid string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if active {
		r.gatewayActive[oid] = true
	} else {
		delete(r.gatewayActive, oid)
	}
}

// GatewayActive reports whether the gateway last claimed the scene was
// active.
func (r *Registry) GatewayActive(oid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gatewayActive[oid]
}

// Stats returns registry counts for monitoring.
type Stats struct {
	Shades       int
	Scenes       int
	ActiveScenes int
	ShadesOnline int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		Shades: len(r.shades),
		Scenes: len(r.scenes),
	}
	for _, s := range r.shades {
		if s.Online {
			stats.ShadesOnline++
		}
	}
	for _, s := range r.scenes {
		if s.Active {
			stats.ActiveScenes++
		}
	}
	return stats
}
