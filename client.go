package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger    zerolog.Logger
	artifacts ArtifactWriter
	notifiers []Notifier
}

// WithClientLogger sets the logger shared by the client and its engine.
func WithClientLogger(l zerolog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithArtifactWriter replaces the CSV writer rooted at Config.ArtifactDir.
func WithArtifactWriter(w ArtifactWriter) Option {
	return func(o *clientOptions) { o.artifacts = w }
}

// WithNotifierSink adds a notifier that receives every status message in
// addition to Notifications listeners.
func WithNotifierSink(n Notifier) Option {
	return func(o *clientOptions) { o.notifiers = append(o.notifiers, n) }
}

// Client owns the local store and, when a remote queue is configured, the
// sync engine draining it.
type Client struct {
	store       *Store
	engine      *Engine
	remote      RemoteQueue
	broadcaster *Broadcaster
	config      Config
	logger      zerolog.Logger

	mu       sync.Mutex
	schedule *Schedule
	closed   bool
}

// New creates a client. A nil remote runs the client in offline mode: the
// archive can be read and searched but Sync returns ErrOffline.
func New(cfg Config, remote RemoteQueue, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.artifacts == nil {
		o.artifacts = NewCSVArtifactWriter(cfg.ArtifactDir)
	}

	store, err := NewStore(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	c := &Client{
		store:       store,
		remote:      remote,
		broadcaster: NewBroadcaster(),
		config:      cfg,
		logger:      o.logger.With().Str("component", "client").Logger(),
	}

	if remote != nil {
		c.engine = NewEngine(remote, store, o.artifacts,
			WithNotifier(c.fanout(o.notifiers)),
			WithLogger(o.logger),
			WithRecordTimeout(cfg.RecordTimeout),
			WithCycleHook(c.recordCycle),
		)
		if cfg.AutoSync {
			c.schedule = c.engine.Start(context.Background(), cfg.SyncInterval)
			c.logger.Info().Dur("interval", cfg.SyncInterval).Msg("background sync started")
		}
	}

	return c, nil
}

func (c *Client) fanout(extra []Notifier) Notifier {
	if len(extra) == 0 {
		return c.broadcaster
	}
	sinks := append([]Notifier{c.broadcaster}, extra...)
	return NotifierFunc(func(msg string) {
		for _, n := range sinks {
			n.Notify(msg)
		}
	})
}

// recordCycle persists when the archive last synced.
func (c *Client) recordCycle(ctx context.Context, result *CycleResult) {
	if err := c.store.SetMetadata(ctx, MetaLastSync, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		c.logger.Warn().Err(err).Msg("record last sync")
	}
	if err := c.store.SetMetadata(ctx, MetaLastCycleID, result.CycleID); err != nil {
		c.logger.Warn().Err(err).Msg("record last cycle id")
	}
}

// Offline reports whether the client runs without a remote queue.
func (c *Client) Offline() bool {
	return c.engine == nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// Sync runs one cycle now. The returned error is the cycle-fatal error, if
// any; per-record failures are only reported in the result.
func (c *Client) Sync(ctx context.Context) (*CycleResult, error) {
	if c.engine == nil {
		return nil, ErrOffline
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrStoreClosed
	}

	result := c.engine.RunCycle(ctx)
	return result, result.Err
}

// Records returns every archived record, most recent first.
func (c *Client) Records(ctx context.Context) ([]SyncedRecord, error) {
	return c.store.QueryAll(ctx)
}

// Search returns archived records matching q, most recent first.
func (c *Client) Search(ctx context.Context, q string) ([]SyncedRecord, error) {
	return c.store.QuerySearch(ctx, q)
}

// Get returns the archived record with the given remote id.
func (c *Client) Get(ctx context.Context, remoteID string) (*SyncedRecord, error) {
	return c.store.Get(ctx, remoteID)
}

// Subscribe follows the result of Search(q) as it changes.
func (c *Client) Subscribe(q string) (*Subscription, error) {
	return c.store.Subscribe(q)
}

// Notifications registers a listener for status messages.
func (c *Client) Notifications(buffer int) (<-chan string, func()) {
	return c.broadcaster.Subscribe(buffer)
}

// Stats returns store statistics.
func (c *Client) Stats(ctx context.Context) (*StoreStats, error) {
	return c.store.Stats(ctx)
}

// Purge removes every archived record. Artifacts are kept.
func (c *Client) Purge(ctx context.Context) (int64, error) {
	n, err := c.store.Purge(ctx)
	if err == nil {
		c.logger.Info().Int64("removed", n).Msg("archive purged")
	}
	return n, err
}

// HealthCheck returns the health status of the client.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		StoreOK: true,
	}

	if _, err := c.store.Count(ctx); err != nil {
		status.StoreOK = false
		status.Healthy = false
		status.Error = err.Error()
		return status
	}

	if p, ok := c.remote.(Pinger); ok {
		err := p.Ping(ctx)
		status.RemoteReachable = err == nil
		if err != nil {
			status.Error = err.Error()
		}
	} else if c.remote != nil {
		status.RemoteReachable = true
	}

	return status
}

// Close stops background sync, waits for the in-flight cycle and closes the
// store.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.schedule != nil {
		c.schedule.Stop()
	}
	if c.engine != nil {
		c.engine.wait()
	}
	c.broadcaster.Close()

	if err := c.store.Close(); err != nil && !errors.Is(err, ErrStoreClosed) {
		return fmt.Errorf("client: close store: %w", err)
	}
	return nil
}
