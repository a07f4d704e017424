package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agbru/lookforge/internal/logging"
)

// CompletionMessage is the message of the final snapshot of a completed session.
const CompletionMessage = "Generation complete"

// DefaultPublishTimeout bounds a single Publish call.
const DefaultPublishTimeout = 2 * time.Second

// Publisher delivers snapshots to whoever follows a session. Delivery is best
// effort: errors are logged by the Tracker and never reach its callers.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, snap Snapshot) error
}

// PublisherFunc is a function adapter that implements Publisher.
type PublisherFunc func(ctx context.Context, sessionID string, snap Snapshot) error

// Publish calls the underlying function.
func (f PublisherFunc) Publish(ctx context.Context, sessionID string, snap Snapshot) error {
	return f(ctx, sessionID, snap)
}

// Update is the set of fields a caller may change through EmitProgress.
// Zero values leave the stored field untouched.
type Update struct {
	Status  Status
	Segment int
	Message string
	Phase   string
}

// entry is a tracked session plus its pending removal.
type entry struct {
	session Session
	cleanup *time.Timer
}

// Tracker owns the live session table. Operations on different sessions may
// run concurrently; callers are expected to drive one session from one place.
// Every operation except InitSession is a no-op for unknown session ids.
type Tracker struct {
	mu        sync.Mutex
	sessions  map[string]*entry
	closed    bool
	publisher Publisher
	logger    logging.Logger
	now       func() time.Time
	retention time.Duration
	timeout   time.Duration
	onStatus  func(id string, status Status)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPublisher sets the snapshot publisher.
func WithPublisher(p Publisher) Option {
	return func(t *Tracker) { t.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithRetention changes how long finalized sessions remain readable.
func WithRetention(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.retention = d
		}
	}
}

// WithPublishTimeout bounds each publish call.
func WithPublishTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithStatusHook registers a callback invoked when a session starts, completes
// or fails. It runs outside the tracker lock.
func WithStatusHook(fn func(id string, status Status)) Option {
	return func(t *Tracker) { t.onStatus = fn }
}

// NewTracker creates an empty Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		sessions:  make(map[string]*entry),
		logger:    logging.Nop(),
		now:       time.Now,
		retention: DefaultRetention,
		timeout:   DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// InitSession creates the session id, replacing any existing session with the
// same id and cancelling its pending removal. Callers are responsible for id
// uniqueness.
func (t *Tracker) InitSession(id string, cfg Config) Session {
	cfg = cfg.withDefaults()
	s := Session{
		ID:                 id,
		StartTime:          t.now(),
		Status:             StatusStarted,
		TotalSegments:      cfg.TotalSegments,
		EstimatedTotalTime: cfg.EstimatedTotalTime,
		PhaseTimings:       make(map[string]time.Duration),
	}

	t.mu.Lock()
	if old, ok := t.sessions[id]; ok {
		if old.cleanup != nil {
			old.cleanup.Stop()
		}
		t.logger.Debug("session replaced", logging.String("session", id))
	}
	t.sessions[id] = &entry{session: s}
	t.mu.Unlock()

	t.logger.Debug("session started",
		logging.String("session", id),
		logging.Int("segments", cfg.TotalSegments),
		logging.Duration("estimate", cfg.EstimatedTotalTime))
	t.notifyStatus(id, StatusStarted)
	return s.clone()
}

// EmitProgress merges u into the session and publishes a fresh snapshot.
//
// Updates with an unknown status or a segment outside [0, TotalSegments] are
// rejected and logged. A status that would move the session backwards, or
// away from a terminal status, is ignored while the other fields still apply.
// A completed or failed status finalizes the session exactly like
// CompleteSession and FailSession, with u.Message as the completion message
// or failure reason.
//
// Returns the published snapshot, or false when the session does not exist
// or the update was rejected.
func (t *Tracker) EmitProgress(id string, u Update) (Snapshot, bool) {
	t.mu.Lock()
	e, ok := t.sessions[id]
	if !ok {
		t.mu.Unlock()
		return Snapshot{}, false
	}
	s := &e.session
	if u.Status != "" && !u.Status.Valid() {
		t.mu.Unlock()
		t.logger.Info("progress update rejected: unknown status",
			logging.String("session", id), logging.String("status", string(u.Status)))
		return Snapshot{}, false
	}
	if u.Segment < 0 || u.Segment > s.TotalSegments {
		total := s.TotalSegments
		t.mu.Unlock()
		t.logger.Info("progress update rejected: segment out of range",
			logging.String("session", id), logging.Int("segment", u.Segment), logging.Int("total", total))
		return Snapshot{}, false
	}
	if u.Status.Terminal() && !s.Status.Terminal() {
		applyUpdate(s, Update{Segment: u.Segment, Phase: u.Phase})
		message, errMsg := terminalMessages(u.Status, u.Message)
		snap, _ := t.finalizeLocked(id, e, u.Status, message, errMsg)
		return snap, true
	}
	applyUpdate(s, u)
	snap := snapshotAt(s, t.now())
	t.mu.Unlock()

	t.publish(id, snap)
	return snap, true
}

// terminalMessages returns the session message and terminal error recorded
// when a session ends with status. detail is the caller's message, if any.
func terminalMessages(status Status, detail string) (message, errMsg string) {
	if status == StatusCompleted {
		if detail == "" {
			detail = CompletionMessage
		}
		return detail, ""
	}
	if detail == "" {
		detail = "unknown error"
	}
	return "Generation failed: " + detail, detail
}

func applyUpdate(s *Session, u Update) {
	if u.Status != "" && !s.Status.Terminal() && u.Status.rank() >= s.Status.rank() {
		s.Status = u.Status
	}
	if u.Segment > 0 {
		s.CurrentSegment = u.Segment
	}
	if u.Message != "" {
		s.Message = u.Message
	}
	if u.Phase != "" {
		s.Phase = u.Phase
	}
}

// RecordPhase stores (or overwrites) the duration of phase. It does not publish.
func (t *Tracker) RecordPhase(id, phase string, d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.sessions[id]
	if !ok {
		return false
	}
	e.session.PhaseTimings[phase] = d
	return true
}

// TimePhase starts timing phase and returns a func that records the elapsed
// duration when called. Typical use is defer t.TimePhase(id, "analysis")().
func (t *Tracker) TimePhase(id, phase string) func() {
	start := t.now()
	return func() {
		t.RecordPhase(id, phase, t.now().Sub(start))
	}
}

// RecordError appends a non-terminal error to the session's error list.
func (t *Tracker) RecordError(id, phase string, err error) bool {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.sessions[id]
	if !ok {
		return false
	}
	e.session.Errors = append(e.session.Errors, ErrorRecord{Phase: phase, Message: msg, Timestamp: now})
	return true
}

// GetProgress returns a copy of the session.
func (t *Tracker) GetProgress(id string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.sessions[id]
	if !ok {
		return Session{}, false
	}
	return e.session.clone(), true
}

// Current computes the snapshot of the session as of now without publishing it.
func (t *Tracker) Current(id string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.sessions[id]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotAt(&e.session, t.now()), true
}

// CompleteSession marks the session completed, publishes a final snapshot and
// schedules its removal after the retention window.
func (t *Tracker) CompleteSession(id string) (Session, bool) {
	return t.finalize(id, StatusCompleted, "")
}

// FailSession marks the session failed with err, publishes a final snapshot
// and schedules its removal after the retention window.
func (t *Tracker) FailSession(id string, err error) (Session, bool) {
	var detail string
	if err != nil {
		detail = err.Error()
	}
	return t.finalize(id, StatusFailed, detail)
}

func (t *Tracker) finalize(id string, status Status, detail string) (Session, bool) {
	t.mu.Lock()
	e, ok := t.sessions[id]
	if !ok {
		t.mu.Unlock()
		return Session{}, false
	}
	if e.session.Status.Terminal() {
		out := e.session.clone()
		t.mu.Unlock()
		t.logger.Debug("session already finalized", logging.String("session", id), logging.String("status", string(out.Status)))
		return out, true
	}
	message, errMsg := terminalMessages(status, detail)
	_, out := t.finalizeLocked(id, e, status, message, errMsg)
	return out, true
}

// finalizeLocked ends the session held by e. It must be called with t.mu held
// and releases it before publishing. The final snapshot is an ordinary
// time-based snapshot.
func (t *Tracker) finalizeLocked(id string, e *entry, status Status, message, errMsg string) (Snapshot, Session) {
	now := t.now()
	s := &e.session
	s.Status = status
	s.Message = message
	s.Error = errMsg
	s.CompletedAt = now
	s.TotalTime = now.Sub(s.StartTime)
	snap := snapshotAt(s, now)
	t.scheduleRemoval(id, e)
	out := s.clone()
	t.mu.Unlock()

	t.publish(id, snap)
	t.logger.Info("session finished",
		logging.String("session", id),
		logging.String("status", string(status)),
		logging.Duration("total", out.TotalTime),
		logging.Int("errors", len(out.Errors)))
	t.notifyStatus(id, status)
	return snap, out
}

// scheduleRemoval must be called with t.mu held. The timer only removes the
// exact entry it was created for, so a session re-initialized after the timer
// fired but before it acquired the lock survives.
func (t *Tracker) scheduleRemoval(id string, e *entry) {
	if t.closed {
		return
	}
	if e.cleanup != nil {
		e.cleanup.Stop()
	}
	e.cleanup = time.AfterFunc(t.retention, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if cur, ok := t.sessions[id]; ok && cur == e {
			delete(t.sessions, id)
			t.logger.Debug("session expired", logging.String("session", id))
		}
	})
}

// Sessions lists live session ids in lexical order.
func (t *Tracker) Sessions() []string {
	t.mu.Lock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Close stops every pending removal timer. Sessions stay readable; sessions
// finalized afterwards are never removed.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for _, e := range t.sessions {
		if e.cleanup != nil {
			e.cleanup.Stop()
			e.cleanup = nil
		}
	}
}

func (t *Tracker) publish(id string, snap Snapshot) {
	if t.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	if err := t.publisher.Publish(ctx, id, snap); err != nil {
		t.logger.Error("progress publish failed", err, logging.String("session", id))
	}
}

func (t *Tracker) notifyStatus(id string, status Status) {
	if t.onStatus != nil {
		t.onStatus(id, status)
	}
}
