package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specht/specht-client/internal/domain/model"
	domain "github.com/specht/specht-client/internal/domain/service"
)

func newEngine(store *fakeStore, dir string, alerter *recordingAlerter) *ReconcileService {
	if alerter == nil {
		alerter = &recordingAlerter{}
	}
	return NewReconcileService(store, fakeParser{}, alerter, nopLogger{}, dir, "yaml")
}

func runPass(t *testing.T, engine *ReconcileService) *model.PassReport {
	t.Helper()
	done := make(chan *model.PassReport, 1)
	engine.Reconcile(context.Background(), func(r *model.PassReport) { done <- r })
	return awaitReport(t, done)
}

func awaitReport(t *testing.T, done <-chan *model.PassReport) *model.PassReport {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		require.FailNow(t, "reconcile pass did not complete")
		return nil
	}
}

func storedNames(store *fakeStore) []string {
	var names []string
	for _, d := range store.list() {
		names = append(names, d.Name)
	}
	return names
}

func TestReconcile_EmptyDirectoryDrainsRegistry(t *testing.T) {
	store := newFakeStore()
	store.seed("old-one", "h1")
	store.seed("old-two", "h2")

	report := runPass(t, newEngine(store, t.TempDir(), nil))

	assert.Nil(t, report.Fatal)
	assert.Equal(t, 2, report.Removed)
	assert.Empty(t, report.Created)
	assert.Empty(t, store.list())
}

func TestReconcile_ValidAndMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "port: 1080\n")
	writeConfig(t, dir, "b.yaml", "malformed: [\n")
	store := newFakeStore()
	alerter := &recordingAlerter{}

	report := runPass(t, newEngine(store, dir, alerter))

	assert.Nil(t, report.Fatal)
	assert.Equal(t, []string{"a"}, report.Created)
	assert.Equal(t, []string{"a"}, storedNames(store))
	require.Len(t, report.Errors, 1)
	assert.True(t, errors.Is(report.Errors[0], model.ErrInvalidConfig))
	assert.Equal(t, model.ClassPerItem, model.ClassOf(report.Errors[0]))
	assert.Contains(t, report.Errors[0].Error(), "b.yaml")

	alerts := alerter.all()
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Error(), "b.yaml")
}

func TestReconcile_PayloadCarriesFileContent(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "home.yaml", "port: 9090\n")
	store := newFakeStore()

	runPass(t, newEngine(store, dir, nil))

	defs := store.list()
	require.Len(t, defs, 1)
	assert.Equal(t, "home", defs[0].Name)
	assert.Equal(t, path, defs[0].Payload.ConfigPath)
	assert.Equal(t, "port: 9090\n", defs[0].Payload.Config)
	assert.Equal(t, domain.Fingerprint([]byte("port: 9090\n")), defs[0].Payload.Hash)
}

func TestReconcile_WaitsForEveryRemoval(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "port: 1\n")
	store := newFakeStore("remove")
	store.seed("x", "h1")
	store.seed("y", "h2")
	store.seed("z", "h3")
	engine := newEngine(store, dir, nil)

	done := make(chan *model.PassReport, 1)
	engine.Reconcile(context.Background(), func(r *model.PassReport) { done <- r })

	calls := store.waitPending(t, "remove", 3)
	assert.Equal(t, model.StateDraining, engine.State())

	// completions arrive in reverse order of issue
	store.release(calls[2])
	store.release(calls[1])
	_, _, creates := store.counts()
	assert.Zero(t, creates, "scan must not start before the last removal completes")
	assert.Equal(t, model.StateDraining, engine.State())

	store.release(calls[0])
	report := awaitReport(t, done)

	assert.Equal(t, 3, report.Removed)
	assert.Equal(t, []string{"a"}, report.Created)
	assert.Equal(t, []string{"a"}, storedNames(store))
	assert.Equal(t, model.StateIdle, engine.State())
}

func TestReconcile_CompletesAfterEveryCreate(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "port: 1\n")
	writeConfig(t, dir, "b.yaml", "port: 2\n")
	writeConfig(t, dir, "c.yaml", "port: 3\n")
	store := newFakeStore("create")
	engine := newEngine(store, dir, nil)

	var calls int32
	done := make(chan *model.PassReport, 2)
	engine.Reconcile(context.Background(), func(r *model.PassReport) {
		atomic.AddInt32(&calls, 1)
		done <- r
	})

	pending := store.waitPending(t, "create", 3)
	assert.Equal(t, model.StatePopulating, engine.State())
	store.release(pending[1])
	store.release(pending[0])
	select {
	case <-done:
		require.FailNow(t, "completion fired before the last create")
	default:
	}

	store.release(pending[2])
	report := awaitReport(t, done)
	assert.Equal(t, []string{"a", "b", "c"}, report.Created)

	assert.Never(t, func() bool { return atomic.LoadInt32(&calls) > 1 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestReconcile_ListFailureStillCompletes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "port: 1\n")
	store := newFakeStore()
	store.listErr = errBoom
	alerter := &recordingAlerter{}
	engine := newEngine(store, dir, alerter)

	report := runPass(t, engine)

	require.Error(t, report.Fatal)
	assert.True(t, report.Failed())
	assert.True(t, model.IsFatalToPass(report.Fatal))
	assert.ErrorIs(t, report.Fatal, errBoom)
	_, _, creates := store.counts()
	assert.Zero(t, creates)
	assert.Len(t, alerter.all(), 1)
	assert.Equal(t, model.StateIdle, engine.State())

	// the engine is usable again after an aborted pass
	store.mu.Lock()
	store.listErr = nil
	store.mu.Unlock()
	report = runPass(t, engine)
	assert.Nil(t, report.Fatal)
	assert.Equal(t, []string{"a"}, report.Created)
}

func TestReconcile_MissingDirectoryIsFatal(t *testing.T) {
	store := newFakeStore()
	report := runPass(t, newEngine(store, filepath.Join(t.TempDir(), "missing"), nil))

	require.Error(t, report.Fatal)
	var re *model.ReconcileError
	require.ErrorAs(t, report.Fatal, &re)
	assert.Equal(t, "scan", re.Op)
	assert.Equal(t, model.ClassFatalToPass, re.Class)
}

func TestReconcile_RemoveFailureIsPerItem(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "c.yaml", "port: 3\n")
	store := newFakeStore()
	store.seed("a", "h1")
	store.seed("b", "h2")
	store.removeErr["a"] = errBoom

	report := runPass(t, newEngine(store, dir, nil))

	assert.Nil(t, report.Fatal)
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, []string{"c"}, report.Created)
	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], errBoom)
	assert.Equal(t, []string{"a", "c"}, storedNames(store))
}

func TestReconcile_CreateFailureIsPerItem(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "port: 1\n")
	writeConfig(t, dir, "b.yaml", "port: 2\n")
	store := newFakeStore()
	store.createErr["a"] = errBoom

	report := runPass(t, newEngine(store, dir, nil))

	assert.Nil(t, report.Fatal)
	assert.Equal(t, []string{"b"}, report.Created)
	require.Len(t, report.Errors, 1)
	var re *model.ReconcileError
	require.ErrorAs(t, report.Errors[0], &re)
	assert.Equal(t, "create", re.Op)
	assert.Equal(t, "a", re.Target)
}

func TestReconcile_FiltersDirectoryEntries(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "port: 1\n")
	writeConfig(t, dir, "b.YAML", "port: 2\n")
	writeConfig(t, dir, "c.txt", "port: 3\n")
	writeConfig(t, dir, ".hidden.yaml", "port: 4\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.yaml"), 0o755))
	store := newFakeStore()

	report := runPass(t, newEngine(store, dir, nil))

	assert.Equal(t, []string{"a", "b"}, report.Created)
	assert.Empty(t, report.Errors)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "port: 1\n")
	writeConfig(t, dir, "b.yaml", "port: 2\n")
	store := newFakeStore()
	engine := newEngine(store, dir, nil)

	first := runPass(t, engine)
	before := store.list()
	second := runPass(t, engine)
	after := store.list()

	assert.Equal(t, []string{"a", "b"}, first.Changed)
	assert.Empty(t, second.Changed)
	assert.Equal(t, []string{"a", "b"}, second.Unchanged)
	assert.Equal(t, 2, second.Removed)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Name, after[i].Name)
		assert.Equal(t, before[i].Payload.Hash, after[i].Payload.Hash)
	}
	assert.NotEqual(t, first.PassID, second.PassID)
}

func TestReconcile_DetectsChangedFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "port: 1\n")
	writeConfig(t, dir, "b.yaml", "port: 2\n")
	store := newFakeStore()
	engine := newEngine(store, dir, nil)
	runPass(t, engine)

	writeConfig(t, dir, "b.yaml", "port: 2222\n")
	writeConfig(t, dir, "new.yaml", "port: 3\n")
	report := runPass(t, engine)

	assert.Equal(t, []string{"b", "new"}, report.Changed)
	assert.Equal(t, []string{"a"}, report.Unchanged)
	for _, d := range store.list() {
		if d.Name == "b" {
			assert.Equal(t, domain.Fingerprint([]byte("port: 2222\n")), d.Payload.Hash)
		}
	}
}

func TestReconcile_CaseCollisionKeepsLastWrite(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "X.yaml", "port: 1\n")
	writeConfig(t, dir, "x.yaml", "port: 2\n")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	if len(entries) < 2 {
		t.Skip("case-insensitive filesystem")
	}

	store := newFakeStore("create")
	engine := newEngine(store, dir, nil)
	done := make(chan *model.PassReport, 1)
	engine.Reconcile(context.Background(), func(r *model.PassReport) { done <- r })

	pending := store.waitPending(t, "create", 2)
	// "x" completes first, "X" last
	var upper, lower *pendingCall
	for _, c := range pending {
		if c.name == "X" {
			upper = c
		} else {
			lower = c
		}
	}
	require.NotNil(t, upper)
	require.NotNil(t, lower)
	store.release(lower)
	store.release(upper)
	report := awaitReport(t, done)

	defs := store.list()
	require.Len(t, defs, 1)
	assert.Equal(t, "X", defs[0].Name)
	assert.Equal(t, "port: 1\n", defs[0].Payload.Config)
	assert.Equal(t, []string{"x"}, report.Duplicates)
}

func TestReconcile_CoalescesTriggersDuringPass(t *testing.T) {
	store := newFakeStore("remove")
	store.seed("stale", "h")
	engine := newEngine(store, t.TempDir(), nil)

	first := make(chan *model.PassReport, 1)
	second := make(chan *model.PassReport, 1)
	third := make(chan *model.PassReport, 1)
	engine.Reconcile(context.Background(), func(r *model.PassReport) { first <- r })
	calls := store.waitPending(t, "remove", 1)

	engine.Reconcile(context.Background(), func(r *model.PassReport) { second <- r })
	engine.Reconcile(context.Background(), func(r *model.PassReport) { third <- r })
	lists, _, _ := store.counts()
	assert.Equal(t, 1, lists, "queued triggers must not start a pass")

	store.release(calls[0])
	r1 := awaitReport(t, first)
	r2 := awaitReport(t, second)
	r3 := awaitReport(t, third)

	assert.Equal(t, 1, r1.Removed)
	assert.NotEqual(t, r1.PassID, r2.PassID)
	assert.Equal(t, r2.PassID, r3.PassID)
	lists, _, _ = store.counts()
	assert.Equal(t, 2, lists)
}

type passRecorder struct {
	recordingMetricsBase
	passes int32
}

func (m *passRecorder) ObservePass(*model.PassReport) { atomic.AddInt32(&m.passes, 1) }

func TestReconcile_RecordsPassMetrics(t *testing.T) {
	engine := newEngine(newFakeStore(), t.TempDir(), nil)
	m := &passRecorder{}
	engine.SetMetrics(m)

	runPass(t, engine)
	assert.Equal(t, int32(1), atomic.LoadInt32(&m.passes))
}

func TestReconcile_QueuedPassOutlivesCancelledTrigger(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "port: 1\n")
	store := newFakeStore("remove")
	store.seed("stale", "h")
	engine := newEngine(store, dir, nil)

	first := make(chan *model.PassReport, 1)
	second := make(chan *model.PassReport, 1)
	third := make(chan *model.PassReport, 1)
	engine.Reconcile(context.Background(), func(r *model.PassReport) { first <- r })
	calls := store.waitPending(t, "remove", 1)

	engine.Reconcile(context.Background(), func(r *model.PassReport) { second <- r })
	cancelled, cancel := context.WithCancel(context.Background())
	engine.Reconcile(cancelled, func(r *model.PassReport) { third <- r })
	cancel()

	store.release(calls[0])
	r1 := awaitReport(t, first)
	require.Nil(t, r1.Fatal)

	// the follow-up pass drains the definition the first one created
	store.release(store.waitPending(t, "remove", 1)[0])
	r2 := awaitReport(t, second)
	r3 := awaitReport(t, third)

	assert.Nil(t, r2.Fatal)
	assert.Equal(t, r2.PassID, r3.PassID)
	assert.Equal(t, 1, r2.Removed)
	assert.Equal(t, []string{"a"}, r2.Created)
}

func TestReconcile_AfterPassHoldsNextPass(t *testing.T) {
	store := newFakeStore()
	engine := newEngine(store, t.TempDir(), nil)

	var hookDone func()
	hooked := make(chan struct{}, 2)
	engine.SetAfterPass(func(_ context.Context, _ *model.PassReport, done func()) {
		hookDone = done
		hooked <- struct{}{}
	})

	first := make(chan *model.PassReport, 1)
	second := make(chan *model.PassReport, 1)
	engine.Reconcile(context.Background(), func(r *model.PassReport) { first <- r })
	<-hooked
	engine.Reconcile(context.Background(), func(r *model.PassReport) { second <- r })

	lists, _, _ := store.counts()
	assert.Equal(t, 1, lists)
	assert.Empty(t, first, "callbacks wait for the hook")

	hookDone()
	awaitReport(t, first)
	select {
	case <-hooked:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "follow-up pass did not run")
	}
	hookDone()
	awaitReport(t, second)
	lists, _, _ = store.counts()
	assert.Equal(t, 2, lists)
}

func TestJoinContexts_CancelledWhenAllDone(t *testing.T) {
	a, cancelA := context.WithCancel(context.Background())
	b, cancelB := context.WithCancel(context.Background())
	joined, release := joinContexts([]context.Context{a, b})
	defer release()

	cancelA()
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, joined.Err())

	cancelB()
	require.Eventually(t, func() bool { return joined.Err() != nil }, time.Second, 5*time.Millisecond)
}

func TestJoinContexts_ReleaseCancels(t *testing.T) {
	joined, release := joinContexts([]context.Context{context.Background()})
	assert.NoError(t, joined.Err())
	release()
	assert.Error(t, joined.Err())
}
