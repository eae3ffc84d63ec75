package zone

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/config"
	"github.com/nexusgo/server/internal/data"
	"github.com/nexusgo/server/internal/scripting"
	"github.com/nexusgo/server/internal/tick"
	"github.com/nexusgo/server/internal/world"
)

// Registry creates zone instances on demand and ties each to the tick
// scheduler. Instances live until Shutdown; an empty zone keeps ticking
// so respawn timers stay honest.
type Registry struct {
	mu    sync.Mutex
	zones map[world.ZoneKey]*Instance
	jobs  map[world.ZoneKey]uint64

	cfg       config.GameConfig
	content   *data.Store
	mgr       *world.Manager
	scheduler *tick.Scheduler
	log       *zap.Logger

	scriptsDir string
}

func NewRegistry(cfg config.GameConfig, content *data.Store, mgr *world.Manager, scheduler *tick.Scheduler, scriptsDir string, log *zap.Logger) *Registry {
	return &Registry{
		zones:      make(map[world.ZoneKey]*Instance),
		jobs:       make(map[world.ZoneKey]uint64),
		cfg:        cfg,
		content:    content,
		mgr:        mgr,
		scheduler:  scheduler,
		log:        log,
		scriptsDir: scriptsDir,
	}
}

// Get returns the running instance for key, creating and starting it on
// first use. Unknown world IDs fail: a client cannot conjure maps the
// content store does not define.
func (r *Registry) Get(key world.ZoneKey) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if z, ok := r.zones[key]; ok {
		return z, true
	}
	tmpl := r.content.GetZone(key.WorldID)
	if tmpl == nil {
		return nil, false
	}

	// Each zone owns its own Lua VM; the gopher-lua state is not safe to
	// share across goroutines.
	scripts, err := scripting.NewEngine(r.scriptsDir, r.log)
	if err != nil {
		r.log.Error("encounter scripts failed to load, zone runs without hooks",
			zap.Uint32("zone", key.WorldID), zap.Error(err))
		scripts = nil
	}

	z := New(key, tmpl, r.cfg, r.content, r.mgr, scripts, r.log)
	z.Start(tmpl)
	r.zones[key] = z
	r.jobs[key] = r.scheduler.Add(r.cfg.TickRate, z.PostTick)
	r.log.Info("zone instance started",
		zap.Uint32("zone", key.WorldID),
		zap.Uint32("instance", key.InstanceID),
		zap.String("name", tmpl.Name),
	)
	return z, true
}

// Lookup returns the instance only if it is already running.
func (r *Registry) Lookup(key world.ZoneKey) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	z, ok := r.zones[key]
	return z, ok
}

// ForEach visits every running instance.
func (r *Registry) ForEach(fn func(*Instance)) {
	r.mu.Lock()
	instances := make([]*Instance, 0, len(r.zones))
	for _, z := range r.zones {
		instances = append(instances, z)
	}
	r.mu.Unlock()
	for _, z := range instances {
		fn(z)
	}
}

// Shutdown stops every zone and cancels its tick job.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, z := range r.zones {
		r.scheduler.Remove(r.jobs[key])
		z.Shutdown()
		delete(r.zones, key)
		delete(r.jobs, key)
	}
}
