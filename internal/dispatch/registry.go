package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"go.corp.example.com/shuttlegateway/internal/cache"
)

// RegistryEntry is a command's envelope plus its lifecycle status and a
// flag marking that a WMS-relevant update is pending (spec §4.5, §4.7).
// Finish sets WMSUpdated; the Webhook Reporter does not read it, and
// nothing in this repository clears it.
type RegistryEntry struct {
	Envelope   CommandEnvelope
	Status     LifecycleStatus
	WMSUpdated bool
}

const (
	defaultTerminalCacheSize = 5000
	defaultTerminalCacheTTL  = 10 * time.Minute
)

// Registry is the in-memory command_id -> envelope/status map (spec §4.5).
// Live entries (queued, processing) are kept in an unbounded map since
// their count is naturally bounded by COMMAND_QUEUE_MAX_SIZE per shuttle;
// terminal entries (completed, failed, cancelled) are retained only long
// enough for the Webhook Reporter and any late status query to observe
// them, behind a size- and TTL-bounded expirable LRU so a long-running
// gateway doesn't accumulate history forever.
type Registry struct {
	mu     sync.RWMutex
	live   map[string]*RegistryEntry
	done   *cache.KeyedCache[*RegistryEntry]
	logger *slog.Logger
}

// NewRegistry builds a Registry whose terminal-entry cache holds at most
// maxTerminal entries for ttl each.
func NewRegistry(maxTerminal int, ttl time.Duration, logger *slog.Logger) *Registry {
	if maxTerminal <= 0 {
		maxTerminal = defaultTerminalCacheSize
	}
	if ttl <= 0 {
		ttl = defaultTerminalCacheTTL
	}
	return &Registry{
		live:   make(map[string]*RegistryEntry),
		done:   cache.New[*RegistryEntry](maxTerminal, ttl),
		logger: logger,
	}
}

// Put inserts a freshly admitted command in the queued state.
func (r *Registry) Put(env CommandEnvelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[env.ID] = &RegistryEntry{Envelope: env, Status: StatusQueued}
}

// Get returns the entry for id, checking live entries first and falling
// back to the terminal cache.
func (r *Registry) Get(id string) (*RegistryEntry, bool) {
	r.mu.RLock()
	entry, ok := r.live[id]
	r.mu.RUnlock()
	if ok {
		return entry, true
	}
	return r.done.Get(id)
}

// MarkProcessing transitions id from queued to processing. No-op if id is
// not a live queued entry.
func (r *Registry) MarkProcessing(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.live[id]; ok {
		entry.Status = StatusProcessing
	}
}

// Finish moves id out of the live map into the terminal cache with the
// given terminal status and sets its WMSUpdated flag.
func (r *Registry) Finish(id string, status LifecycleStatus) {
	r.mu.Lock()
	entry, ok := r.live[id]
	if ok {
		delete(r.live, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	entry.Status = status
	entry.WMSUpdated = true
	r.done.Add(id, entry)
}

// IsCancelled reports whether id has been marked cancelled, checking both
// live (between enqueue and pickup) and terminal entries.
func (r *Registry) IsCancelled(id string) bool {
	entry, ok := r.Get(id)
	return ok && entry.Status == StatusCancelled
}

// Cancel marks id cancelled if it is still live and not already
// processing; returns false if the command is processing or already
// terminal, matching the best-effort cancellation contract of spec §4.5.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.live[id]
	if !ok || entry.Status == StatusProcessing {
		return false
	}
	entry.Status = StatusCancelled
	delete(r.live, id)
	r.done.Add(id, entry)
	return true
}
