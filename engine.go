package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// DefaultSyncInterval is the period between cycles when none is configured.
const DefaultSyncInterval = 10 * time.Second

// RemoteQueue is the networked collection producers append to.
// Implementations must not assume the returned order is meaningful, and
// DeleteByID reports ErrNotFound for ids that are already gone.
type RemoteQueue interface {
	FetchPending(ctx context.Context) ([]RemoteRecord, error)
	DeleteByID(ctx context.Context, id string) error
}

// Pinger is implemented by remote queues that can report reachability
// without fetching the queue.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LocalStore is the durable side of a cycle.
type LocalStore interface {
	InsertOrReplace(ctx context.Context, rec *SyncedRecord) error
}

// CycleHook runs after every cycle whose fetch succeeded.
type CycleHook func(ctx context.Context, result *CycleResult)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNotifier sets the status message sink. Defaults to NopNotifier.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithLogger sets the engine logger. Defaults to a disabled logger.
func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l.With().Str("component", "engine").Logger() }
}

// WithRecordTimeout bounds the artifact write, insert and delete of one record.
// Zero disables the bound.
func WithRecordTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.recordTimeout = d }
}

// WithCycleHook registers fn to run after each cycle whose fetch succeeded.
func WithCycleHook(fn CycleHook) EngineOption {
	return func(e *Engine) { e.hook = fn }
}

// Engine drains a RemoteQueue into a LocalStore. For each record it writes
// the artifact, persists the row and only then deletes the record remotely.
// Cycles never overlap.
type Engine struct {
	remote    RemoteQueue
	store     LocalStore
	artifacts ArtifactWriter

	notifier      Notifier
	logger        zerolog.Logger
	recordTimeout time.Duration
	hook          CycleHook

	mu sync.Mutex
}

// NewEngine wires an engine over the given collaborators.
func NewEngine(remote RemoteQueue, store LocalStore, artifacts ArtifactWriter, opts ...EngineOption) *Engine {
	e := &Engine{
		remote:    remote,
		store:     store,
		artifacts: artifacts,
		notifier:  NopNotifier{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle performs one reconciliation pass. If another cycle holds the engine
// it returns at once with Busy set and Err = ErrCycleInProgress, without
// fetching. A fetch failure is the only cycle-fatal error; per-record failures
// are reported in the result. Once ctx is done no further record is started,
// but the record in flight runs to completion.
func (e *Engine) RunCycle(ctx context.Context) *CycleResult {
	if !e.mu.TryLock() {
		e.logger.Debug().Msg("cycle skipped, previous cycle still running")
		return &CycleResult{StartedAt: time.Now(), Busy: true, Err: ErrCycleInProgress}
	}
	defer e.mu.Unlock()

	result := &CycleResult{
		CycleID:   ulid.Make().String(),
		StartedAt: time.Now(),
	}
	log := e.logger.With().Str("cycle_id", result.CycleID).Logger()
	defer func() { result.Duration = time.Since(result.StartedAt) }()

	records, err := e.fetch(ctx)
	if err != nil {
		result.Err = err
		if ctx.Err() != nil {
			result.Interrupted = true
			log.Debug().Err(err).Msg("fetch interrupted")
			return result
		}
		log.Error().Err(err).Str("kind", KindOf(err).String()).Msg("fetch pending failed")
		e.notify(errorMessage(err))
		return result
	}

	result.Fetched = len(records)
	if len(records) == 0 {
		log.Debug().Msg("no pending records")
		e.runHook(ctx, result)
		return result
	}

	log.Info().Int("fetched", len(records)).Msg("pending records fetched")
	e.notify(foundMessage(len(records)))

	for _, r := range records {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}

		out := e.processRecord(ctx, log, r)
		result.Outcomes = append(result.Outcomes, out)
		switch out.Outcome {
		case OutcomeSynced:
			result.Synced++
			if out.DeleteErr != nil {
				result.DeleteFailed++
			}
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeFailed:
			result.Failed++
			e.notify(errorMessage(out.Err))
		}
	}

	log.Info().
		Int("synced", result.Synced).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("delete_failed", result.DeleteFailed).
		Bool("interrupted", result.Interrupted).
		Msg("cycle complete")
	e.notify(cycleCompleteMessage(result))
	e.runHook(ctx, result)

	return result
}

func (e *Engine) fetch(ctx context.Context) (records []RemoteRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = NewConnectionError("fetch pending", 0, fmt.Errorf("panic: %v", p))
		}
	}()

	records, err = e.remote.FetchPending(ctx)
	if err != nil && KindOf(err) == KindUnknown {
		err = NewConnectionError("fetch pending", 0, err)
	}
	return records, err
}

// processRecord runs validate, artifact, persist and delete for one record.
// The remote delete is only reached after the row is committed.
func (e *Engine) processRecord(ctx context.Context, log zerolog.Logger, r RemoteRecord) (out RecordOutcome) {
	out.RemoteID = r.ID
	log = log.With().Str("remote_id", r.ID).Logger()

	defer func() {
		if p := recover(); p != nil {
			out.Outcome = OutcomeFailed
			out.Err = recordError(KindUnknown, "process record", r.ID, fmt.Errorf("panic: %v", p))
			log.Error().Err(out.Err).Msg("record processing panicked")
		}
	}()

	if err := r.Validate(); err != nil {
		out.Outcome = OutcomeSkipped
		out.Err = recordError(KindMalformedRecord, "validate", r.ID, err)
		log.Warn().Err(err).Str("kind", KindMalformedRecord.String()).Msg("skipping malformed record")
		return out
	}

	rctx, cancel := e.recordContext(ctx)
	defer cancel()

	path, err := e.artifacts.Write(rctx, r)
	if err != nil {
		if KindOf(err) != KindArtifactWrite {
			err = recordError(KindArtifactWrite, "write artifact", r.ID, err)
		}
		out.Outcome = OutcomeFailed
		out.Err = err
		log.Error().Err(err).Str("kind", KindArtifactWrite.String()).Msg("artifact write failed")
		return out
	}
	out.ArtifactPath = path

	if err := e.store.InsertOrReplace(rctx, NewSyncedRecord(r, path)); err != nil {
		out.Outcome = OutcomeFailed
		out.Err = recordError(KindLocalPersist, "persist record", r.ID, err)
		log.Error().Err(err).Str("kind", KindLocalPersist.String()).Str("artifact", path).
			Msg("local persist failed, artifact orphaned")
		return out
	}

	out.Outcome = OutcomeSynced
	if err := e.remote.DeleteByID(rctx, r.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Debug().Msg("record already gone remotely")
			return out
		}
		out.DeleteErr = recordError(KindRemoteDelete, "delete remote", r.ID, err)
		log.Warn().Err(err).Str("kind", KindRemoteDelete.String()).Msg("remote delete failed, record will be re-delivered")
		return out
	}

	log.Debug().Str("artifact", path).Msg("record synced")
	return out
}

// recordContext detaches the record from ctx cancellation so a stop request
// never interrupts a record between artifact, insert and delete.
func (e *Engine) recordContext(ctx context.Context) (context.Context, context.CancelFunc) {
	rctx := context.WithoutCancel(ctx)
	if e.recordTimeout > 0 {
		return context.WithTimeout(rctx, e.recordTimeout)
	}
	return context.WithCancel(rctx)
}

// notify hands msg to the notifier. A failing sink never reaches the cycle.
func (e *Engine) notify(msg string) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error().Interface("panic", p).Str("message", msg).Msg("notifier panicked")
		}
	}()
	e.notifier.Notify(msg)
}

func (e *Engine) runHook(ctx context.Context, result *CycleResult) {
	if e.hook == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error().Interface("panic", p).Msg("cycle hook panicked")
		}
	}()
	e.hook(context.WithoutCancel(ctx), result)
}

// RunForever runs a cycle immediately and then every interval until ctx is
// done. It returns once the in-flight cycle, if any, has finished.
func (e *Engine) RunForever(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	e.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Both cases may be ready; a stopped schedule must not start a cycle.
			if ctx.Err() != nil {
				return
			}
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	result := e.RunCycle(ctx)
	if result.Busy {
		e.logger.Debug().Msg("tick skipped, engine busy")
	}
}

// wait blocks until no cycle is running.
func (e *Engine) wait() {
	e.mu.Lock()
	e.mu.Unlock()
}

// Schedule is the handle of a running RunForever loop.
type Schedule struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start runs RunForever in the background and returns its handle.
func (e *Engine) Start(ctx context.Context, interval time.Duration) *Schedule {
	ctx, cancel := context.WithCancel(ctx)
	s := &Schedule{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		e.RunForever(ctx, interval)
	}()
	return s
}

// Stop prevents any further cycle from starting and waits for the in-flight
// cycle to finish. Safe to call more than once.
func (s *Schedule) Stop() {
	s.cancel()
	<-s.done
}

// Done is closed once the loop has exited.
func (s *Schedule) Done() <-chan struct{} {
	return s.done
}
