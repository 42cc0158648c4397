package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/specht/specht-client/internal/domain/model"
)

// fakeStore is an in-memory TunnelRegistryStore. Operations named in manual are
// parked until the test releases them, so completion order is under test control.
type fakeStore struct {
	mu        sync.Mutex
	defs      map[string]model.TunnelDefinition
	manual    map[string]bool
	pending   []*pendingCall
	listErr   error
	removeErr map[string]error
	createErr map[string]error
	lists     int
	removes   []string
	creates   []string
	nextID    int
}

type pendingCall struct {
	op       string
	name     string
	complete func()
}

func newFakeStore(manual ...string) *fakeStore {
	f := &fakeStore{
		defs:      make(map[string]model.TunnelDefinition),
		manual:    make(map[string]bool),
		removeErr: make(map[string]error),
		createErr: make(map[string]error),
	}
	for _, op := range manual {
		f.manual[op] = true
	}
	return f
}

func (f *fakeStore) seed(name, hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	def := model.TunnelDefinition{
		ID:      fmt.Sprintf("seed-%d", f.nextID),
		Name:    name,
		Payload: model.Payload{Hash: hash},
	}
	f.defs[def.Key()] = def
}

func (f *fakeStore) dispatch(op, name string, complete func()) {
	f.mu.Lock()
	if f.manual[op] {
		f.pending = append(f.pending, &pendingCall{op: op, name: name, complete: complete})
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	go complete()
}

func (f *fakeStore) list() []model.TunnelDefinition {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.TunnelDefinition, 0, len(f.defs))
	for _, d := range f.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *fakeStore) ListAll(ctx context.Context, done func([]model.TunnelDefinition, error)) {
	f.mu.Lock()
	f.lists++
	err := f.listErr
	f.mu.Unlock()
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	f.dispatch("list", "", func() {
		if err != nil {
			done(nil, err)
			return
		}
		done(f.list(), nil)
	})
}

func (f *fakeStore) Remove(_ context.Context, def model.TunnelDefinition, done func(error)) {
	f.mu.Lock()
	f.removes = append(f.removes, def.Name)
	err := f.removeErr[def.Name]
	f.mu.Unlock()
	f.dispatch("remove", def.Name, func() {
		if err == nil {
			f.mu.Lock()
			if cur, ok := f.defs[def.Key()]; ok && cur.ID == def.ID {
				delete(f.defs, def.Key())
			}
			f.mu.Unlock()
		}
		done(err)
	})
}

func (f *fakeStore) Create(_ context.Context, name string, payload model.Payload, done func(error)) {
	f.mu.Lock()
	f.creates = append(f.creates, name)
	err := f.createErr[name]
	f.mu.Unlock()
	f.dispatch("create", name, func() {
		if err == nil {
			f.mu.Lock()
			f.nextID++
			def := model.TunnelDefinition{ID: fmt.Sprintf("def-%d", f.nextID), Name: name, Payload: payload}
			f.defs[def.Key()] = def
			f.mu.Unlock()
		}
		done(err)
	})
}

func (f *fakeStore) pendingOf(op string) []*pendingCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*pendingCall
	for _, c := range f.pending {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeStore) waitPending(t *testing.T, op string, n int) []*pendingCall {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.pendingOf(op)) == n },
		2*time.Second, 5*time.Millisecond, "expected %d pending %s calls", n, op)
	return f.pendingOf(op)
}

func (f *fakeStore) release(c *pendingCall) {
	f.mu.Lock()
	for i, p := range f.pending {
		if p == c {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	f.mu.Unlock()
	c.complete()
}

func (f *fakeStore) counts() (lists, removes, creates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists, len(f.removes), len(f.creates)
}

// fakeParser rejects any config containing the word "malformed"
type fakeParser struct{}

func (fakeParser) Validate(text []byte) error {
	if strings.Contains(string(text), "malformed") {
		return fmt.Errorf("%w: malformed document", model.ErrInvalidConfig)
	}
	return nil
}

type recordingAlerter struct {
	mu   sync.Mutex
	errs []error
}

func (a *recordingAlerter) Alert(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs = append(a.errs, err)
}

func (a *recordingAlerter) all() []error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]error(nil), a.errs...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) SetLevel(string)              {}
func (nopLogger) Close() error                 { return nil }

type fakeSessions struct {
	mu       sync.Mutex
	status   map[string]model.ConnectionStatus
	started  []string
	stopped  []string
	resets   []string
	startErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{status: make(map[string]model.ConnectionStatus)}
}

func (s *fakeSessions) Start(def model.TunnelDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = append(s.started, def.Name)
	return nil
}

func (s *fakeSessions) Stop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = append(s.stopped, name)
	return nil
}

func (s *fakeSessions) Status(name string) model.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[name]; ok {
		return st
	}
	return model.StatusDisconnected
}

func (s *fakeSessions) Reset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[name].IsActive() {
		return
	}
	delete(s.status, name)
	s.resets = append(s.resets, name)
}

type publishedEvent struct {
	msgType model.MessageType
	payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(msgType model.MessageType, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{msgType: msgType, payload: payload})
}

func (p *recordingPublisher) ofType(msgType model.MessageType) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.msgType == msgType {
			out = append(out, e)
		}
	}
	return out
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

var errBoom = errors.New("boom")

// recordingMetricsBase satisfies port.Metrics; tests embed it and override what they count
type recordingMetricsBase struct {
	mu       sync.Mutex
	statuses []model.ConnectionStatus
	tunnels  int
}

func (m *recordingMetricsBase) ObservePass(*model.PassReport)                 {}
func (m *recordingMetricsBase) ObserveStoreCall(string, time.Duration, error) {}

func (m *recordingMetricsBase) ObserveStatusChange(status model.ConnectionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
}

func (m *recordingMetricsBase) SetTunnels(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tunnels = n
}

type fakeSource struct {
	ch chan model.StatusEvent
}

func (s *fakeSource) Events() <-chan model.StatusEvent {
	return s.ch
}
