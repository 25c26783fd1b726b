// Package catalog manages the registry of backend capability profiles.
//
// The catalog publishes immutable snapshots through an atomic pointer:
// in-flight routing requests keep scoring against the snapshot they started
// with while a reload swaps in a new one. A failed reload keeps the
// last-known-good snapshot.
package catalog

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/taskrouter/internal/model"
)

// Snapshot is an immutable view of the catalog at one point in time.
type Snapshot struct {
	Backends []model.BackendProfile
	byID     map[string]*model.BackendProfile
	LoadedAt time.Time
}

// Get returns the profile with the given id, or nil.
func (s *Snapshot) Get(id string) *model.BackendProfile {
	if s == nil {
		return nil
	}
	return s.byID[id]
}

// Profiles returns pointers into the snapshot's backing array, in load order.
func (s *Snapshot) Profiles() []*model.BackendProfile {
	if s == nil {
		return nil
	}
	out := make([]*model.BackendProfile, len(s.Backends))
	for i := range s.Backends {
		out[i] = &s.Backends[i]
	}
	return out
}

// Size returns the number of backends in the snapshot.
func (s *Snapshot) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Backends)
}

// Catalog owns the current snapshot and knows how to reload it.
type Catalog struct {
	path string
	snap atomic.Pointer[Snapshot]
}

// New creates an empty catalog that reloads from the given YAML path.
func New(path string) *Catalog {
	c := &Catalog{path: path}
	c.snap.Store(newSnapshot(nil))
	return c
}

// NewStatic creates a catalog from a fixed set of profiles (used by tests
// and embedded setups with no catalog file).
func NewStatic(backends []model.BackendProfile) *Catalog {
	c := &Catalog{}
	c.snap.Store(newSnapshot(backends))
	return c
}

func newSnapshot(backends []model.BackendProfile) *Snapshot {
	byID := make(map[string]*model.BackendProfile, len(backends))
	for i := range backends {
		byID[backends[i].ID] = &backends[i]
	}
	return &Snapshot{Backends: backends, byID: byID, LoadedAt: time.Now().UTC()}
}

// catalogFile is the on-disk YAML shape.
type catalogFile struct {
	Backends []model.BackendProfile `yaml:"backends"`
}

// Load reads and validates the catalog file, then atomically publishes the
// new snapshot. On error the previous snapshot stays in place.
func (c *Catalog) Load() error {
	if c.path == "" {
		return eris.New("catalog: no path configured")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return eris.Wrapf(err, "catalog: read %s", c.path)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return eris.Wrapf(err, "catalog: parse %s", c.path)
	}

	if err := validate(file.Backends); err != nil {
		return err
	}

	c.snap.Store(newSnapshot(file.Backends))
	zap.L().Info("catalog: loaded",
		zap.String("path", c.path),
		zap.Int("backends", len(file.Backends)),
	)
	return nil
}

// Reload re-reads the catalog file. Failure keeps the last-known-good
// snapshot and is reported to the caller.
func (c *Catalog) Reload() error {
	if err := c.Load(); err != nil {
		zap.L().Warn("catalog: reload failed, keeping last-known-good snapshot",
			zap.Int("backends", c.Snapshot().Size()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Snapshot returns the current immutable snapshot.
func (c *Catalog) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Swap atomically replaces the snapshot with the given profiles. Used for
// programmatic hot-swaps (e.g. an admin endpoint).
func (c *Catalog) Swap(backends []model.BackendProfile) error {
	if err := validate(backends); err != nil {
		return err
	}
	c.snap.Store(newSnapshot(backends))
	return nil
}

// RunReloader periodically reloads the catalog until ctx is cancelled.
// A zero or negative interval disables periodic reloading.
func (c *Catalog) RunReloader(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	log := zap.L().With(zap.String("component", "catalog.reloader"))
	log.Info("starting catalog reloader", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("catalog reloader stopped")
			return
		case <-ticker.C:
			_ = c.Reload()
		}
	}
}

func validate(backends []model.BackendProfile) error {
	seen := make(map[string]bool, len(backends))
	for i := range backends {
		b := &backends[i]
		if b.ID == "" {
			return eris.Errorf("catalog: backend %d has no id", i)
		}
		if seen[b.ID] {
			return eris.Errorf("catalog: duplicate backend id %q", b.ID)
		}
		seen[b.ID] = true

		if b.Category != model.CategoryLocal && b.Category != model.CategoryHosted {
			return eris.Errorf("catalog: backend %q has invalid category %q", b.ID, b.Category)
		}
		if b.PrivacyLevel < 0 || b.PrivacyLevel > 10 {
			return eris.Errorf("catalog: backend %q privacy level %.1f out of range", b.ID, b.PrivacyLevel)
		}
		for cap, score := range b.Capabilities {
			if score < 0 || score > 10 {
				return eris.Errorf("catalog: backend %q capability %s score %.1f out of range", b.ID, cap, score)
			}
		}
	}
	return nil
}
