package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/chanq/internal/backend"
	"github.com/roach88/chanq/internal/backend/boltbackend"
	"github.com/roach88/chanq/internal/backend/sqlbackend"
	"github.com/roach88/chanq/internal/config"
	"github.com/roach88/chanq/internal/event"
	"github.com/roach88/chanq/internal/store"
)

// closePollInterval is how long Close waits before retrying handles that
// are busy in a backend call.
const closePollInterval = 5 * time.Millisecond

// Provider owns the backend and the session registry.
type Provider struct {
	log      *slog.Logger
	reg      prometheus.Registerer
	metrics  *metrics
	registry *registry

	mu          sync.RWMutex
	initialized bool
	closed      bool
	cfg         config.Config
	backend     backend.Backend
	store       *store.Store
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// WithRegisterer registers the provider's metrics on reg at Initialize.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Provider) {
		p.reg = reg
	}
}

// WithBackend makes Initialize use b instead of opening the backend named
// by the configuration. The provider takes ownership and closes b.
func WithBackend(b backend.Backend) Option {
	return func(p *Provider) {
		p.backend = b
	}
}

// NewProvider returns an uninitialized provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		log:      slog.Default(),
		metrics:  newMetrics(),
		registry: newRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open creates a provider and initializes it with cfg.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Provider, error) {
	p := NewProvider(opts...)
	if err := p.Initialize(ctx, cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// OpenProperties is Open for a flat property map, as read by
// config.FromProperties.
func OpenProperties(ctx context.Context, props map[string]string, opts ...Option) (*Provider, error) {
	p := NewProvider(opts...)
	if err := p.InitializeProperties(ctx, props); err != nil {
		return nil, err
	}
	return p, nil
}

// InitializeProperties parses props and initializes the provider with the
// result. Unknown keys and malformed values are initialization errors.
func (p *Provider) InitializeProperties(ctx context.Context, props map[string]string) error {
	cfg, err := config.FromProperties(props)
	if err != nil {
		return &Error{Code: ErrCodeInitialization, Op: "initialize", Message: "invalid configuration", Err: err}
	}
	return p.Initialize(ctx, cfg)
}

// Initialize validates cfg, connects to the backend and creates or verifies
// the schema. It may be called once.
func (p *Provider) Initialize(ctx context.Context, cfg config.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return newClosedError("initialize")
	}
	if p.initialized {
		return &Error{Code: ErrCodeInitialization, Op: "initialize", Message: "already initialized"}
	}
	if err := cfg.Validate(); err != nil {
		return &Error{Code: ErrCodeInitialization, Op: "initialize", Message: "invalid configuration", Err: err}
	}

	b := p.backend
	if b == nil {
		if !cfg.CreateSchema {
			// Opening a missing file would create it.
			if err := requireStoreFile(cfg); err != nil {
				return &Error{Code: ErrCodeSchema, Op: "initialize", Err: err}
			}
		}
		opened, err := openBackend(ctx, cfg)
		if err != nil {
			return &Error{Code: ErrCodeInitialization, Op: "initialize", Message: "open backend", Err: err}
		}
		b = opened
	}

	if err := b.Bootstrap(ctx, cfg.CreateSchema); err != nil {
		if closeErr := b.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		p.backend = nil
		return &Error{Code: ErrCodeSchema, Op: "initialize", Err: err}
	}

	if p.reg != nil {
		if err := p.metrics.register(p.reg); err != nil {
			b.Close()
			p.backend = nil
			return &Error{Code: ErrCodeInitialization, Op: "initialize", Message: "register metrics", Err: err}
		}
	}

	p.cfg = cfg
	p.backend = b
	p.store = store.New(store.WithCapacity(cfg.MaxCapacity))
	p.initialized = true

	p.log.Info("provider initialized",
		"backend", b.Name(),
		"url", cfg.Redacted().URL,
		"create_schema", cfg.CreateSchema,
		"max_capacity", cfg.MaxCapacity,
	)
	return nil
}

// requireStoreFile fails when cfg names an embedded store file that does
// not exist.
func requireStoreFile(cfg config.Config) error {
	var path string
	switch cfg.DBType {
	case config.DBTypeBolt:
		path = cfg.URL
	case config.DBTypeSQLite:
		p, ok := sqlbackend.SQLitePath(cfg.URL)
		if !ok {
			return nil
		}
		path = p
	default:
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("schema not initialized: store %s does not exist", path)
		}
		return err
	}
	return nil
}

func openBackend(ctx context.Context, cfg config.Config) (backend.Backend, error) {
	if cfg.DBType == config.DBTypeBolt {
		return boltbackend.Open(boltbackend.Options{Path: cfg.URL})
	}
	d, err := sqlbackend.LookupDialect(cfg.DBType)
	if err != nil {
		return nil, err
	}
	dsn, err := sqlbackend.BuildDSN(d, cfg.URL, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}
	return sqlbackend.Open(ctx, sqlbackend.Options{
		Dialect: d,
		Driver:  cfg.Driver,
		DSN:     dsn,
	})
}

// Config returns the configuration the provider was initialized with.
func (p *Provider) Config() config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Backend returns the backend name, or "" before Initialize.
func (p *Provider) Backend() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.backend == nil {
		return ""
	}
	return p.backend.Name()
}

func (p *Provider) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Transaction returns the handle bound to ctx's session, creating one if
// the session has none. Calling it twice for a session without closing the
// handle in between returns the same *Tx.
func (p *Provider) Transaction(ctx context.Context) (*Tx, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, newClosedError("transaction")
	}
	if !p.initialized {
		return nil, &Error{Code: ErrCodeInitialization, Op: "transaction", Message: "provider not initialized"}
	}
	session, ok := SessionFromContext(ctx)
	if !ok {
		return nil, &Error{Code: ErrCodeTransactionState, Op: "transaction", Message: "no session bound to context"}
	}
	return p.registry.getOrCreate(session, func() *Tx { return newTx(p, session) }), nil
}

// current returns the open handle of ctx's session.
func (p *Provider) current(ctx context.Context, op, channel string) (*Tx, error) {
	if p.isClosed() {
		return nil, newClosedError(op)
	}
	session, ok := SessionFromContext(ctx)
	if !ok {
		return nil, &Error{Code: ErrCodeTransactionState, Op: op, Channel: channel, Message: "no session bound to context"}
	}
	tx, ok := p.registry.lookup(session)
	if !ok {
		return nil, &Error{Code: ErrCodeTransactionState, Op: op, Channel: channel, Message: "no transaction for session"}
	}
	return tx, nil
}

// PersistEvent appends ev to channel inside the session's active
// transaction.
func (p *Provider) PersistEvent(ctx context.Context, channel string, ev event.Event) error {
	tx, err := p.current(ctx, "persist", channel)
	if err != nil {
		return err
	}
	return tx.Persist(ctx, channel, ev)
}

// RemoveEvent claims the oldest event of channel inside the session's
// active transaction. It returns nil, nil when the channel is empty.
func (p *Provider) RemoveEvent(ctx context.Context, channel string) (*event.Event, error) {
	tx, err := p.current(ctx, "remove", channel)
	if err != nil {
		return nil, err
	}
	return tx.Remove(ctx, channel)
}

// Size returns the depth of channel as seen by the session's active
// transaction.
func (p *Provider) Size(ctx context.Context, channel string) (int64, error) {
	tx, err := p.current(ctx, "size", channel)
	if err != nil {
		return 0, err
	}
	return tx.Size(ctx, channel)
}

// OpenTransactions returns the number of handles bound to a session.
func (p *Provider) OpenTransactions() int {
	return p.registry.len()
}

// Close rolls back and closes every open handle, then closes the backend.
// Later calls on the provider or its handles fail with a provider-closed
// error. Close is idempotent.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	b := p.backend
	p.mu.Unlock()

	var errs []error
	pending := p.registry.drain()
	if len(pending) > 0 {
		p.log.Warn("closing provider with open transactions", "count", len(pending))
	}
	// A handle busy in a backend call may be waiting on a lock or
	// connection held by another handle, so close whichever are idle first.
	for len(pending) > 0 {
		busy := pending[:0]
		for _, tx := range pending {
			if !tx.mu.TryLock() {
				busy = append(busy, tx)
				continue
			}
			if err := tx.closeLocked(slog.LevelWarn); err != nil {
				errs = append(errs, fmt.Errorf("session %s: %w", tx.session, err))
			}
			tx.mu.Unlock()
		}
		pending = busy
		if len(pending) > 0 {
			time.Sleep(closePollInterval)
		}
	}

	if b != nil {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
	}
	p.log.Info("provider closed")
	return errors.Join(errs...)
}
