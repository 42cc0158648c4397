package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// AsyncStore adapts a blocking TunnelRegistry to the asynchronous TunnelRegistryStore.
// Each call runs on its own goroutine and completes exactly once, either with the
// backend result or with model.ErrStoreTimeout. Results arriving after a timeout are dropped.
type AsyncStore struct {
	backend          port.TunnelRegistry
	timeout          time.Duration
	providerBundleID string
	serverAddress    string
	metrics          port.Metrics
	now              func() time.Time
}

// Option configures an AsyncStore
type Option func(*AsyncStore)

// WithTimeout bounds every backend call; zero disables the bound
func WithTimeout(timeout time.Duration) Option {
	return func(s *AsyncStore) { s.timeout = timeout }
}

// WithProvider sets the provider reference and server address stored on created definitions
func WithProvider(bundleID, serverAddress string) Option {
	return func(s *AsyncStore) {
		s.providerBundleID = bundleID
		s.serverAddress = serverAddress
	}
}

// WithMetrics records every backend call
func WithMetrics(m port.Metrics) Option {
	return func(s *AsyncStore) { s.metrics = m }
}

// NewAsyncStore creates an AsyncStore over backend
func NewAsyncStore(backend port.TunnelRegistry, opts ...Option) *AsyncStore {
	s := &AsyncStore{
		backend:          backend,
		timeout:          10 * time.Second,
		providerBundleID: model.DefaultProviderBundleID,
		serverAddress:    model.DefaultServerAddress,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAll enumerates the persisted definitions
func (s *AsyncStore) ListAll(ctx context.Context, done func([]model.TunnelDefinition, error)) {
	go func() {
		defs, err := call(ctx, s, "list", s.backend.List)
		done(defs, err)
	}()
}

// Remove deletes one persisted definition
func (s *AsyncStore) Remove(ctx context.Context, def model.TunnelDefinition, done func(error)) {
	go func() {
		_, err := call(ctx, s, "remove", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.backend.Remove(ctx, def)
		})
		done(err)
	}()
}

// Create persists a new definition under name
func (s *AsyncStore) Create(ctx context.Context, name string, payload model.Payload, done func(error)) {
	def := model.TunnelDefinition{
		ID:               uuid.NewString(),
		Name:             name,
		Payload:          payload,
		ProviderBundleID: s.providerBundleID,
		ServerAddress:    s.serverAddress,
		UpdatedAt:        s.now().UTC(),
	}
	go func() {
		_, err := call(ctx, s, "create", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.backend.Put(ctx, def)
		})
		done(err)
	}()
}

// Close closes the backend
func (s *AsyncStore) Close() error {
	return s.backend.Close()
}

func call[T any](ctx context.Context, s *AsyncStore, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := withTimeout(ctx, s.timeout, fn)
	if s.metrics != nil {
		s.metrics.ObserveStoreCall(op, time.Since(start), err)
	}
	return v, err
}

func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", model.ErrStoreTimeout, timeout)
		}
		return zero, ctx.Err()
	}
}

// Ensure AsyncStore implements port.TunnelRegistryStore
var _ port.TunnelRegistryStore = (*AsyncStore)(nil)
