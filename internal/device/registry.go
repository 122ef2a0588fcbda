package device

import (
	"fmt"
	"sort"
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

// Observer receives registry events. Observers run on the goroutine that
// made the change, after the registry lock is released, and see events in
// the order the changes were applied. They may read the registry but must
// not mutate it or block.
type Observer func(Event)

// Registry is the in-memory device table.
//
// Only Upsert, SetStatus, Expire, Remove and Clear mutate it. All public
// methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record

	// Each mutation takes a ticket under mu and delivers its events only
	// once every earlier ticket is done. nextTicket is guarded by mu and
	// served by emitMu.
	nextTicket uint64
	emitMu     sync.Mutex
	turn       *sync.Cond
	served     uint64

	obsMu     sync.RWMutex
	observers []Observer

	logger Logger
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{
		records: make(map[string]*Record),
		logger:  noopLogger{},
		now:     time.Now,
	}
	r.turn = sync.NewCond(&r.emitMu)
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// AddObserver registers fn to be called after every change.
func (r *Registry) AddObserver(fn Observer) {
	r.obsMu.Lock()
	r.observers = append(r.observers, fn)
	r.obsMu.Unlock()
}

// Upsert creates or merges a record.
//
// Parameters:
//   - id: Device identifier; must be non-empty
//   - u: Fields to apply; unset fields are left untouched
//
// Returns:
//   - Record: Copy of the record after the change
//   - bool: true if the record was created by this call
//   - error: ErrInvalidID if id is empty
func (r *Registry) Upsert(id string, u Update) (Record, bool, error) {
	if id == "" {
		return Record{}, false, fmt.Errorf("%w: empty", ErrInvalidID)
	}

	r.mu.Lock()
	rec, exists := r.records[id]
	if !exists {
		rec = r.newRecord(id, u)
		r.records[id] = rec
	}
	applyUpdate(rec, u)
	out := *rec.DeepCopy()
	t := r.ticket()
	r.mu.Unlock()

	kind := EventUpdated
	if !exists {
		kind = EventCreated
		r.logger.Debug("device added", "device_id", id, "type", out.Type, "port", out.Port)
	}
	r.deliver(t, Event{Kind: kind, Record: out})

	return out, !exists, nil
}

// newRecord builds the initial record for id. Type/ip/port come from the
// update's Endpoint or Defaults, then from the identifier itself.
func (r *Registry) newRecord(id string, u Update) *Record {
	rec := &Record{ID: id, Status: EmptyStatus}

	switch {
	case u.Endpoint != nil:
		rec.Type, rec.IP, rec.Port = u.Endpoint.Type, u.Endpoint.IP, u.Endpoint.Port
	case u.Defaults != nil:
		rec.Type, rec.IP, rec.Port = u.Defaults.Type, u.Defaults.IP, u.Defaults.Port
	default:
		if ep, err := ParseID(id); err == nil {
			rec.Type, rec.IP = ep.Type, ep.IP
		}
	}

	if rec.LastSeen.IsZero() {
		rec.LastSeen = r.now()
	}
	return rec
}

func applyUpdate(rec *Record, u Update) {
	if u.Endpoint != nil {
		rec.Type, rec.IP, rec.Port = u.Endpoint.Type, u.Endpoint.IP, u.Endpoint.Port
	}
	if u.Status != nil {
		rec.Status = *u.Status
	}
	if !u.LastSeen.IsZero() {
		rec.LastSeen = u.LastSeen
	}
	if u.Telemetry != nil {
		t := *u.Telemetry
		rec.Telemetry = &t
	}
}

// SetStatus replaces the status of an existing record. It never creates a
// record and leaves LastSeen alone, since a command response is not a
// discovery reply.
//
// Returns:
//   - error: ErrDeviceNotFound if the record is gone (e.g. cleared meanwhile)
func (r *Registry) SetStatus(id, status string) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return ErrDeviceNotFound
	}
	rec.Status = status
	out := *rec.DeepCopy()
	t := r.ticket()
	r.mu.Unlock()

	r.deliver(t, Event{Kind: EventUpdated, Record: out})
	return nil
}

// Get retrieves a record by ID.
// The returned record is a deep copy; callers can safely modify it.
func (r *Registry) Get(id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return rec.DeepCopy(), nil
}

// Snapshot returns a point-in-time copy of every record, ordered by ID.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec.DeepCopy())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear removes every record and returns how many were removed. The
// cleared event carries the removed records ordered by ID.
func (r *Registry) Clear() int {
	r.mu.Lock()
	removed := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		removed = append(removed, *rec)
	}
	r.records = make(map[string]*Record)
	t := r.ticket()
	r.mu.Unlock()

	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	r.deliver(t, Event{Kind: EventCleared, Count: len(removed), Removed: removed})
	return len(removed)
}

// Remove deletes a single record.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return ErrDeviceNotFound
	}
	delete(r.records, id)
	t := r.ticket()
	r.mu.Unlock()

	r.deliver(t, Event{Kind: EventRemoved, Record: *rec})
	return nil
}

// Expire removes every record not heard from since cutoff, by discovery
// reply or telemetry. Returns the removed IDs in order.
func (r *Registry) Expire(cutoff time.Time) []string {
	var removed []Record

	r.mu.Lock()
	for id, rec := range r.records {
		if rec.Freshness().Before(cutoff) {
			removed = append(removed, *rec)
			delete(r.records, id)
		}
	}
	t := r.ticket()
	r.mu.Unlock()

	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	ids := make([]string, 0, len(removed))
	events := make([]Event, 0, len(removed))
	for _, rec := range removed {
		ids = append(ids, rec.ID)
		events = append(events, Event{Kind: EventRemoved, Record: rec})
	}
	r.deliver(t, events...)
	if len(ids) > 0 {
		r.logger.Info("stale devices evicted", "count", len(ids))
	}
	return ids
}

// Count returns the number of records.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Stats returns registry counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{Total: len(r.records)}
	for _, rec := range r.records {
		if rec.Routable() {
			s.Routable++
		} else {
			s.TelemetryOnly++
		}
	}
	return s
}

// ticket reserves the next delivery slot. The caller must hold mu.
func (r *Registry) ticket() uint64 {
	t := r.nextTicket
	r.nextTicket++
	return t
}

// deliver waits until every earlier ticket has been delivered, runs the
// observers for events and then passes the turn on. No registry lock is
// held while observers run.
func (r *Registry) deliver(t uint64, events ...Event) {
	r.emitMu.Lock()
	for r.served != t {
		r.turn.Wait()
	}
	r.emitMu.Unlock()

	defer func() {
		r.emitMu.Lock()
		r.served++
		r.turn.Broadcast()
		r.emitMu.Unlock()
	}()
	for _, e := range events {
		r.emit(e)
	}
}

func (r *Registry) emit(e Event) {
	r.obsMu.RLock()
	observers := r.observers
	r.obsMu.RUnlock()

	for _, fn := range observers {
		fn(e)
	}
}
