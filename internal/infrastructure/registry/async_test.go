package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specht/specht-client/internal/domain/model"
)

// blockingRegistry parks every call until release is closed
type blockingRegistry struct {
	*MemoryRegistry
	release chan struct{}
}

func (b *blockingRegistry) List(ctx context.Context) ([]model.TunnelDefinition, error) {
	<-b.release
	return b.MemoryRegistry.List(context.Background())
}

type failingRegistry struct {
	*MemoryRegistry
}

func (failingRegistry) Put(context.Context, model.TunnelDefinition) error {
	return errors.New("disk full")
}

type recordingMetrics struct {
	mu  sync.Mutex
	ops []string
}

func (m *recordingMetrics) ObservePass(*model.PassReport) {}
func (m *recordingMetrics) ObserveStoreCall(op string, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
}
func (m *recordingMetrics) ObserveStatusChange(model.ConnectionStatus) {}
func (m *recordingMetrics) SetTunnels(int)                             {}

func TestAsyncStore_CreateThenList(t *testing.T) {
	metrics := &recordingMetrics{}
	store := NewAsyncStore(NewMemoryRegistry(),
		WithProvider("bundle.test", "127.0.0.1"),
		WithMetrics(metrics))

	created := make(chan error, 1)
	payload := model.Payload{ConfigPath: "/cfg/home.yaml", Config: "port: 1\n", Hash: "h1"}
	store.Create(context.Background(), "home", payload, func(err error) { created <- err })
	require.NoError(t, <-created)

	listed := make(chan []model.TunnelDefinition, 1)
	store.ListAll(context.Background(), func(defs []model.TunnelDefinition, err error) {
		assert.NoError(t, err)
		listed <- defs
	})
	defs := <-listed
	require.Len(t, defs, 1)
	assert.Equal(t, "home", defs[0].Name)
	assert.Equal(t, payload, defs[0].Payload)
	assert.Equal(t, "bundle.test", defs[0].ProviderBundleID)
	assert.Equal(t, "127.0.0.1", defs[0].ServerAddress)
	assert.NotEmpty(t, defs[0].ID)

	metrics.mu.Lock()
	assert.Equal(t, []string{"create", "list"}, metrics.ops)
	metrics.mu.Unlock()
}

func TestAsyncStore_TimeoutCompletesOnce(t *testing.T) {
	backend := &blockingRegistry{MemoryRegistry: NewMemoryRegistry(), release: make(chan struct{})}
	store := NewAsyncStore(backend, WithTimeout(20*time.Millisecond))

	var calls int
	var mu sync.Mutex
	done := make(chan error, 2)
	store.ListAll(context.Background(), func(defs []model.TunnelDefinition, err error) {
		mu.Lock()
		calls++
		mu.Unlock()
		assert.Nil(t, defs)
		done <- err
	})

	err := <-done
	assert.ErrorIs(t, err, model.ErrStoreTimeout)

	// the late backend result is dropped
	close(backend.release)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestAsyncStore_ErrorsReachCompletion(t *testing.T) {
	store := NewAsyncStore(failingRegistry{NewMemoryRegistry()})

	done := make(chan error, 1)
	store.Create(context.Background(), "home", model.Payload{}, func(err error) { done <- err })
	assert.EqualError(t, <-done, "disk full")
}

func TestAsyncStore_RemoveMissing(t *testing.T) {
	store := NewAsyncStore(NewMemoryRegistry())

	done := make(chan error, 1)
	store.Remove(context.Background(), model.TunnelDefinition{Name: "ghost"}, func(err error) { done <- err })
	assert.NoError(t, <-done)
}
