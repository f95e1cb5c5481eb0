// Package eventsync keeps the local event cache consistent with the remote
// per-user document collection and keeps a reminder armed for every event.
//
// Local writes are applied first and pushed to the remote store in the
// background. A record stays dirty (IsSynced false) until the remote store
// acknowledges the version that is current locally, and remote snapshots never
// overwrite a dirty record. Every delivered snapshot retries the pushes of
// dirty records that are not already in flight.
package eventsync

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/moby/locker"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/carebook/internal/auth"
	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"github.com/MarcoPoloResearchLab/carebook/internal/reminders"
	"github.com/MarcoPoloResearchLab/carebook/internal/remote"
)

// DefaultTombstoneTTL is how long remote documents of a locally deleted id are ignored.
const DefaultTombstoneTTL = 10 * time.Minute

const (
	// DefaultResubscribeDelay is the first wait before a closed remote
	// subscription is opened again.
	DefaultResubscribeDelay = time.Second
	maxResubscribeDelay     = 30 * time.Second
)

// SyncState is the two-phase write state of one event.
type SyncState int

const (
	// StateSynced means the remote store holds the current local version.
	StateSynced SyncState = iota
	// StateDirty means the local version still has to be pushed.
	StateDirty
	// StateSyncing means a push of the local version is in flight.
	StateSyncing
)

func (s SyncState) String() string {
	switch s {
	case StateSynced:
		return "synced"
	case StateDirty:
		return "dirty"
	case StateSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// LocalStore is the local cache the coordinator writes through.
type LocalStore interface {
	InsertOrReplace(ctx context.Context, event events.HealthEvent) error
	Delete(ctx context.Context, eventID string) error
	GetByID(ctx context.Context, eventID string) (events.HealthEvent, bool, error)
	ListAll(ctx context.Context, userID string) ([]events.HealthEvent, error)
}

// Config describes the dependencies of a Coordinator.
type Config struct {
	Store        LocalStore
	Remote       remote.DocumentStore
	Reminders    reminders.Scheduler
	Identity     auth.IdentityProvider
	Clock        func() time.Time
	Logger       *zap.Logger
	TombstoneTTL time.Duration
	// ResubscribeDelay is the initial backoff after the remote stream closes.
	ResubscribeDelay time.Duration
}

// Coordinator synchronizes one signed-in user's events.
type Coordinator struct {
	store        LocalStore
	remote       remote.DocumentStore
	reminders    reminders.Scheduler
	clock        func() time.Time
	logger       *zap.Logger
	tombstoneTTL time.Duration
	userID       string

	resubscribeDelay time.Duration

	locks *locker.Locker

	mu          sync.Mutex
	states      map[string]SyncState
	generations map[string]uint64
	inflight    map[string]bool
	tombstones  map[string]time.Time
	acked       map[string]time.Time
	started     bool
	stopped     bool
	release     func()
	pumpDone    chan struct{}

	lifetime       context.Context
	cancelLifetime context.CancelFunc
	workers        sync.WaitGroup
	stopOnce       sync.Once
}

// New constructs a Coordinator for the user signed in at construction time.
func New(cfg Config) (*Coordinator, error) {
	switch {
	case cfg.Store == nil:
		return nil, newSyncError(opNew, reasonMissingDependency, errMissingStore)
	case cfg.Remote == nil:
		return nil, newSyncError(opNew, reasonMissingDependency, errMissingRemote)
	case cfg.Reminders == nil:
		return nil, newSyncError(opNew, reasonMissingDependency, errMissingReminders)
	case cfg.Identity == nil:
		return nil, newSyncError(opNew, reasonMissingDependency, errMissingIdentity)
	}
	userID, ok := cfg.Identity.CurrentUserID()
	if !ok {
		return nil, newSyncError(opNew, reasonNoIdentity, ErrNoIdentity)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TombstoneTTL
	if ttl <= 0 {
		ttl = DefaultTombstoneTTL
	}
	resubscribeDelay := cfg.ResubscribeDelay
	if resubscribeDelay <= 0 {
		resubscribeDelay = DefaultResubscribeDelay
	}

	lifetime, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:            cfg.Store,
		remote:           cfg.Remote,
		reminders:        cfg.Reminders,
		clock:            clock,
		logger:           logger,
		tombstoneTTL:     ttl,
		userID:           userID,
		resubscribeDelay: resubscribeDelay,
		locks:            locker.New(),
		states:           make(map[string]SyncState),
		generations:      make(map[string]uint64),
		inflight:         make(map[string]bool),
		tombstones:       make(map[string]time.Time),
		acked:            make(map[string]time.Time),
		lifetime:         lifetime,
		cancelLifetime:   cancel,
	}, nil
}

// UserID returns the user the coordinator synchronizes.
func (c *Coordinator) UserID() string {
	return c.userID
}

// Start subscribes to the remote collection and applies snapshots in delivery
// order until Stop. The subscription lives until Stop, not until ctx is done.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return newSyncError(opStart, reasonSubscribe, err)
	}
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return newSyncError(opStart, reasonStopped, ErrStopped)
	}
	if c.started {
		c.mu.Unlock()
		return newSyncError(opStart, reasonAlreadyStarted, ErrAlreadyStarted)
	}
	c.started = true
	c.mu.Unlock()

	stream, release, err := c.remote.Subscribe(c.lifetime, c.userID)
	if err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		c.logError(opStart, reasonSubscribe, err, zap.String(fieldUserID, c.userID))
		return newSyncError(opStart, reasonSubscribe, err)
	}

	pumpDone := make(chan struct{})
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		release()
		return newSyncError(opStart, reasonStopped, ErrStopped)
	}
	c.release = release
	c.pumpDone = pumpDone
	c.mu.Unlock()

	go c.pump(stream, pumpDone)
	return nil
}

// Stop releases the remote subscription and waits for in-flight pushes. It is
// idempotent and safe to call while a snapshot is being applied; snapshots
// delivered afterwards are discarded.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		release := c.release
		pumpDone := c.pumpDone
		c.mu.Unlock()

		c.cancelLifetime()
		if release != nil {
			release()
		}
		if pumpDone != nil {
			<-pumpDone
		}
		c.workers.Wait()
	})
}

// State reports the sync state of eventID. Ids the coordinator has not
// touched report StateSynced.
func (c *Coordinator) State(eventID string) SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[eventID]
}

// Create writes event locally as dirty and pushes it in the background. The
// returned event is what the local store now holds.
func (c *Coordinator) Create(ctx context.Context, event events.HealthEvent) (events.HealthEvent, error) {
	if event.UserID == "" {
		event.UserID = c.userID
	}
	if event.UserID != c.userID {
		return events.HealthEvent{}, newSyncError(opCreate, reasonForeignUser, ErrForeignUser)
	}
	event.DatesTaken = events.NormalizeDates(event.DatesTaken)
	event.IsSynced = false
	canonical, err := event.Canonicalize()
	if err != nil {
		return events.HealthEvent{}, newSyncError(opCreate, reasonInvalidEvent, err)
	}
	event = canonical
	if err := event.Validate(); err != nil {
		return events.HealthEvent{}, newSyncError(opCreate, reasonInvalidEvent, err)
	}

	c.locks.Lock(event.ID)
	defer c.unlock(event.ID)
	if c.isStopped() {
		return events.HealthEvent{}, newSyncError(opCreate, reasonStopped, ErrStopped)
	}

	if err := c.store.InsertOrReplace(ctx, event); err != nil {
		c.logError(opCreate, reasonLocalWrite, err, zap.String(fieldEventID, event.ID))
		return events.HealthEvent{}, newSyncError(opCreate, reasonLocalWrite, err)
	}
	c.clearTombstone(event.ID)
	c.markDirtyLocked(event.ID)
	return event, nil
}

// ToggleCompletion adds date to the event's completed doses when absent and
// removes it when present, then pushes the change in the background.
func (c *Coordinator) ToggleCompletion(ctx context.Context, eventID string, date string) (events.HealthEvent, error) {
	if !events.IsValidDate(date) {
		return events.HealthEvent{}, newSyncError(opToggle, reasonInvalidDate, events.ErrInvalidDate)
	}

	c.locks.Lock(eventID)
	defer c.unlock(eventID)
	if c.isStopped() {
		return events.HealthEvent{}, newSyncError(opToggle, reasonStopped, ErrStopped)
	}

	existing, found, err := c.store.GetByID(ctx, eventID)
	if err != nil {
		c.logError(opToggle, reasonLocalRead, err, zap.String(fieldEventID, eventID))
		return events.HealthEvent{}, newSyncError(opToggle, reasonLocalRead, err)
	}
	if !found || existing.UserID != c.userID {
		return events.HealthEvent{}, newSyncError(opToggle, reasonNotFound, ErrEventNotFound)
	}

	toggled := events.ToggleDate(existing, date)
	toggled.IsSynced = false
	if err := c.store.InsertOrReplace(ctx, toggled); err != nil {
		c.logError(opToggle, reasonLocalWrite, err, zap.String(fieldEventID, eventID))
		return events.HealthEvent{}, newSyncError(opToggle, reasonLocalWrite, err)
	}
	c.markDirtyLocked(eventID)
	return toggled, nil
}

// Delete cancels the reminder, removes the event locally, tombstones the id
// and requests remote deletion in the background. Remote failures are logged
// and swallowed; deleting an id that was never synced or never existed
// succeeds.
func (c *Coordinator) Delete(ctx context.Context, eventID string) error {
	c.locks.Lock(eventID)
	defer c.unlock(eventID)
	if c.isStopped() {
		return newSyncError(opDelete, reasonStopped, ErrStopped)
	}

	if err := c.reminders.Cancel(eventID); err != nil {
		c.logError(opDelete, reasonReminder, err, zap.String(fieldEventID, eventID))
	}
	existing, found, err := c.store.GetByID(ctx, eventID)
	if err != nil {
		c.logError(opDelete, reasonLocalRead, err, zap.String(fieldEventID, eventID))
		return newSyncError(opDelete, reasonLocalRead, err)
	}
	if found && existing.UserID != c.userID {
		return newSyncError(opDelete, reasonForeignUser, ErrForeignUser)
	}
	if err := c.store.Delete(ctx, eventID); err != nil {
		c.logError(opDelete, reasonLocalWrite, err, zap.String(fieldEventID, eventID))
		return newSyncError(opDelete, reasonLocalWrite, err)
	}

	c.mu.Lock()
	c.tombstones[eventID] = c.clock().Add(c.tombstoneTTL)
	c.generations[eventID]++
	delete(c.states, eventID)
	delete(c.acked, eventID)
	c.mu.Unlock()

	c.spawn(func(ctx context.Context) {
		c.deleteRemote(ctx, eventID)
	})
	return nil
}

// EnsureReminders re-arms the next reminder of every local event of the user.
// Events whose date or time cannot be parsed are skipped.
func (c *Coordinator) EnsureReminders(ctx context.Context) error {
	list, err := c.store.ListAll(ctx, c.userID)
	if err != nil {
		c.logError(opEnsureReminders, reasonLocalRead, err, zap.String(fieldUserID, c.userID))
		return newSyncError(opEnsureReminders, reasonLocalRead, err)
	}
	for _, event := range list {
		c.ensureReminder(event)
	}
	return nil
}

// OnRemoteSnapshot applies one remote delivery. Start feeds subscription
// snapshots through it; it is exported for callers that poll the remote store
// themselves.
func (c *Coordinator) OnRemoteSnapshot(ctx context.Context, snapshot remote.Snapshot) {
	if snapshot.UserID != "" && snapshot.UserID != c.userID {
		return
	}
	c.pruneTombstones()

	for _, document := range snapshot.Documents {
		if c.isStopped() {
			return
		}
		event, err := remote.DecodeDocument(document)
		if err != nil {
			c.logger.Warn("remote document skipped",
				zap.String("operation", opApplySnapshot),
				zap.String("reason", reasonDecode),
				zap.String(fieldEventID, document.ID),
				zap.Error(err))
			continue
		}
		if event.UserID != c.userID {
			continue
		}
		c.applyDocument(ctx, event, document.UpdatedAt)
	}
	for _, eventID := range snapshot.Removed {
		if c.isStopped() {
			return
		}
		c.applyRemoval(ctx, eventID)
	}
	c.retryDirty(ctx)
}

func (c *Coordinator) pump(stream <-chan remote.Snapshot, done chan<- struct{}) {
	defer close(done)
	for {
		if !c.drain(stream) {
			return
		}
		c.logger.Warn("remote subscription closed; resubscribing", zap.String(fieldUserID, c.userID))
		next, ok := c.resubscribe()
		if !ok {
			return
		}
		stream = next
	}
}

// drain applies snapshots until the stream closes. It reports false when the
// coordinator stopped instead.
func (c *Coordinator) drain(stream <-chan remote.Snapshot) bool {
	for {
		select {
		case <-c.lifetime.Done():
			return false
		case snapshot, ok := <-stream:
			if c.isStopped() {
				return false
			}
			if !ok {
				return true
			}
			c.OnRemoteSnapshot(c.lifetime, snapshot)
		}
	}
}

// resubscribe opens a new remote subscription with exponential backoff and
// swaps it in as the one Stop releases. The first snapshot of the new stream
// retries every dirty record.
func (c *Coordinator) resubscribe() (<-chan remote.Snapshot, bool) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.resubscribeDelay
	policy.MaxInterval = maxResubscribeDelay
	policy.MaxElapsedTime = 0

	var (
		stream  <-chan remote.Snapshot
		release func()
	)
	subscribe := func() error {
		var err error
		stream, release, err = c.remote.Subscribe(c.lifetime, c.userID)
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logError(opResubscribe, reasonSubscribe, err,
			zap.String(fieldUserID, c.userID),
			zap.Duration("retry_in", wait))
	}
	if err := backoff.RetryNotify(subscribe, backoff.WithContext(policy, c.lifetime), notify); err != nil {
		return nil, false
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		release()
		return nil, false
	}
	previous := c.release
	c.release = release
	c.mu.Unlock()
	if previous != nil {
		previous()
	}
	c.logger.Info("remote subscription restored", zap.String(fieldUserID, c.userID))
	return stream, true
}

// applyDocument writes a remote version of event locally. updatedAt is the
// remote modification time; a version older than the last acknowledged push
// of the id is a late echo and is dropped.
func (c *Coordinator) applyDocument(ctx context.Context, event events.HealthEvent, updatedAt time.Time) {
	c.locks.Lock(event.ID)
	defer c.unlock(event.ID)
	if c.isStopped() || c.isTombstoned(event.ID) || c.isOlderThanAck(event.ID, updatedAt) {
		return
	}

	existing, found, err := c.store.GetByID(ctx, event.ID)
	if err != nil {
		c.logError(opApplySnapshot, reasonLocalRead, err, zap.String(fieldEventID, event.ID))
		return
	}
	if found && !existing.IsSynced {
		return
	}
	if !found || !existing.Equal(event) {
		if err := c.store.InsertOrReplace(ctx, event); err != nil {
			c.logError(opApplySnapshot, reasonLocalWrite, err, zap.String(fieldEventID, event.ID))
			return
		}
	}
	c.setState(event.ID, StateSynced)
	c.ensureReminder(event)
}

func (c *Coordinator) applyRemoval(ctx context.Context, eventID string) {
	c.locks.Lock(eventID)
	defer c.unlock(eventID)
	if c.isStopped() {
		return
	}

	existing, found, err := c.store.GetByID(ctx, eventID)
	if err != nil {
		c.logError(opApplySnapshot, reasonLocalRead, err, zap.String(fieldEventID, eventID))
		return
	}
	if !found || !existing.IsSynced || existing.UserID != c.userID {
		return
	}
	if err := c.reminders.Cancel(eventID); err != nil {
		c.logError(opApplySnapshot, reasonReminder, err, zap.String(fieldEventID, eventID))
	}
	if err := c.store.Delete(ctx, eventID); err != nil {
		c.logError(opApplySnapshot, reasonLocalWrite, err, zap.String(fieldEventID, eventID))
		return
	}
	c.mu.Lock()
	delete(c.states, eventID)
	delete(c.acked, eventID)
	c.mu.Unlock()
}

func (c *Coordinator) retryDirty(ctx context.Context) {
	list, err := c.store.ListAll(ctx, c.userID)
	if err != nil {
		c.logError(opApplySnapshot, reasonLocalRead, err, zap.String(fieldUserID, c.userID))
		return
	}
	for _, event := range list {
		if event.IsSynced {
			continue
		}
		c.locks.Lock(event.ID)
		if !c.isTombstoned(event.ID) {
			c.schedulePushLocked(event.ID)
		}
		c.unlock(event.ID)
	}
}

// markDirtyLocked records a new local version of eventID and makes sure a push
// will carry it. The caller holds the id lock.
func (c *Coordinator) markDirtyLocked(eventID string) {
	c.mu.Lock()
	c.generations[eventID]++
	if !c.inflight[eventID] {
		c.states[eventID] = StateDirty
	}
	c.mu.Unlock()
	c.schedulePushLocked(eventID)
}

// schedulePushLocked starts a push worker for eventID unless one is already
// running; a running worker picks up newer generations before it exits. The
// caller holds the id lock.
func (c *Coordinator) schedulePushLocked(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.inflight[eventID] {
		return
	}
	c.inflight[eventID] = true
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		c.push(c.lifetime, eventID)
	}()
}

func (c *Coordinator) push(ctx context.Context, eventID string) {
	for {
		c.locks.Lock(eventID)
		event, generation, proceed := c.beginPush(ctx, eventID)
		c.unlock(eventID)
		if !proceed {
			return
		}

		pushedAt := c.clock()
		pushErr := c.remote.Upsert(ctx, remote.EncodeEvent(event, pushedAt))

		c.locks.Lock(eventID)
		if c.isTombstoned(eventID) {
			c.finishPush(eventID, nil)
			c.unlock(eventID)
			if pushErr == nil {
				c.deleteRemote(ctx, eventID)
			}
			return
		}
		if pushErr != nil {
			c.finishPush(eventID, statePtr(StateDirty))
			c.unlock(eventID)
			c.logger.Warn("remote push failed; will retry on next snapshot",
				zap.String("operation", opPush),
				zap.String("reason", reasonRemoteWrite),
				zap.String(fieldEventID, eventID),
				zap.Error(pushErr))
			return
		}
		if c.generation(eventID) != generation {
			c.unlock(eventID)
			continue
		}

		acked := event.Clone()
		acked.IsSynced = true
		if err := c.store.InsertOrReplace(ctx, acked); err != nil {
			c.finishPush(eventID, statePtr(StateDirty))
			c.unlock(eventID)
			c.logError(opPush, reasonLocalWrite, err, zap.String(fieldEventID, eventID))
			return
		}
		c.finishPush(eventID, statePtr(StateSynced))
		c.recordAck(eventID, pushedAt)
		c.ensureReminder(acked)
		c.unlock(eventID)
		return
	}
}

// beginPush loads the current local version under the id lock. It reports
// false, clearing the in-flight mark, when nothing is left to push.
func (c *Coordinator) beginPush(ctx context.Context, eventID string) (events.HealthEvent, uint64, bool) {
	if c.isStopped() || c.isTombstoned(eventID) {
		c.finishPush(eventID, nil)
		return events.HealthEvent{}, 0, false
	}
	event, found, err := c.store.GetByID(ctx, eventID)
	if err != nil {
		c.logError(opPush, reasonLocalRead, err, zap.String(fieldEventID, eventID))
		c.finishPush(eventID, statePtr(StateDirty))
		return events.HealthEvent{}, 0, false
	}
	if !found || event.IsSynced {
		c.finishPush(eventID, nil)
		return events.HealthEvent{}, 0, false
	}

	c.mu.Lock()
	generation := c.generations[eventID]
	c.states[eventID] = StateSyncing
	c.mu.Unlock()
	return event, generation, true
}

func (c *Coordinator) finishPush(eventID string, state *SyncState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, eventID)
	if state != nil {
		c.states[eventID] = *state
	} else if c.states[eventID] == StateSyncing {
		delete(c.states, eventID)
	}
}

func (c *Coordinator) deleteRemote(ctx context.Context, eventID string) {
	if err := c.remote.Delete(ctx, c.userID, eventID); err != nil {
		c.logger.Warn("remote delete failed",
			zap.String("operation", opRemoteDelete),
			zap.String(fieldEventID, eventID),
			zap.Error(err))
	}
}

func (c *Coordinator) ensureReminder(event events.HealthEvent) {
	fireAt, found, err := reminders.FireTime(event, c.clock())
	if err != nil {
		c.logger.Debug("event is not schedulable",
			zap.String(fieldEventID, event.ID),
			zap.Error(err))
		return
	}
	if !found {
		if err := c.reminders.Cancel(event.ID); err != nil {
			c.logError(opEnsureReminders, reasonReminder, err, zap.String(fieldEventID, event.ID))
		}
		return
	}
	if err := c.reminders.Schedule(event.ID, fireAt.UnixMilli(), reminders.PayloadFor(event)); err != nil {
		c.logError(opEnsureReminders, reasonReminder, err, zap.String(fieldEventID, event.ID))
	}
}

// spawn runs work on a tracked goroutine bound to the coordinator lifetime.
func (c *Coordinator) spawn(work func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		work(c.lifetime)
	}()
}

func (c *Coordinator) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Coordinator) generation(eventID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[eventID]
}

func (c *Coordinator) setState(eventID string, state SyncState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[eventID] = state
}

func (c *Coordinator) isTombstoned(eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.tombstones[eventID]
	if !ok {
		return false
	}
	if !c.clock().Before(expiry) {
		delete(c.tombstones, eventID)
		return false
	}
	return true
}

func (c *Coordinator) clearTombstone(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tombstones, eventID)
}

func (c *Coordinator) pruneTombstones() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	for eventID, expiry := range c.tombstones {
		if !now.Before(expiry) {
			delete(c.tombstones, eventID)
		}
	}
}

func (c *Coordinator) recordAck(eventID string, pushedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked[eventID] = pushedAt
}

func (c *Coordinator) isOlderThanAck(eventID string, updatedAt time.Time) bool {
	if updatedAt.IsZero() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ackedAt, ok := c.acked[eventID]
	return ok && updatedAt.Before(ackedAt)
}

func (c *Coordinator) unlock(eventID string) {
	if err := c.locks.Unlock(eventID); err != nil {
		c.logError(opLock, reasonUnlock, err, zap.String(fieldEventID, eventID))
	}
}

func (c *Coordinator) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	c.logger.Error("event sync error", attrs...)
}

const (
	fieldUserID  = "user_id"
	fieldEventID = "event_id"
)

func statePtr(state SyncState) *SyncState {
	return &state
}
