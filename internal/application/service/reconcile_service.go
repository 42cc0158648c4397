package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
	domain "github.com/specht/specht-client/internal/domain/service"
)

// ReconcileService replaces the persisted tunnel registry with the definitions
// derived from the config directory.
//
// A pass drains every existing definition, scans the directory and creates one
// definition per valid file. All store calls are asynchronous; the pass completion
// runs exactly once, after every removal and every create or skip has completed.
// Only one pass runs at a time: triggers arriving during a pass are coalesced into
// a single follow-up pass whose completion is delivered to each of them. The
// follow-up pass does not start before the after-pass hook of the previous one
// has finished.
type ReconcileService struct {
	store     port.TunnelRegistryStore
	parser    port.ConfigParser
	alerter   port.Alerter
	logger    port.Logger
	metrics   port.Metrics
	configDir string
	extension string
	now       func() time.Time
	afterPass AfterPassFunc

	mu        sync.Mutex
	state     model.ReconcileState
	running   bool
	queueCtxs []context.Context
	waiting   []func(*model.PassReport)
}

// AfterPassFunc runs once a pass has finished, before its callbacks fire.
// It must call done exactly once; the next pass waits for it.
type AfterPassFunc func(ctx context.Context, report *model.PassReport, done func())

// NewReconcileService creates a new ReconcileService instance
func NewReconcileService(store port.TunnelRegistryStore, parser port.ConfigParser, alerter port.Alerter,
	logger port.Logger, configDir, extension string) *ReconcileService {
	return &ReconcileService{
		store:     store,
		parser:    parser,
		alerter:   alerter,
		logger:    logger,
		configDir: configDir,
		extension: strings.TrimPrefix(extension, "."),
		now:       time.Now,
		state:     model.StateIdle,
	}
}

// SetMetrics attaches a metrics recorder
func (s *ReconcileService) SetMetrics(m port.Metrics) {
	s.metrics = m
}

// SetAfterPass attaches a hook that runs between the end of a pass and its callbacks
func (s *ReconcileService) SetAfterPass(fn AfterPassFunc) {
	s.afterPass = fn
}

// State returns the current stage of the engine
func (s *ReconcileService) State() model.ReconcileState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reconcile starts a pass, or queues one if a pass is in flight. It never blocks;
// onDone (which may be nil) receives the report of the pass that served this trigger.
func (s *ReconcileService) Reconcile(ctx context.Context, onDone func(*model.PassReport)) {
	s.mu.Lock()
	if s.running {
		s.queueCtxs = append(s.queueCtxs, ctx)
		s.waiting = append(s.waiting, onDone)
		s.mu.Unlock()
		s.logger.Debug("Reconcile pass in flight, trigger queued")
		return
	}
	s.running = true
	s.mu.Unlock()

	s.start(ctx, []func(*model.PassReport){onDone}, nil)
}

// pass holds the state of one reconcile pass; nothing in it outlives the pass
type pass struct {
	ctx       context.Context
	release   func()
	callbacks []func(*model.PassReport)

	// hashes of the drained definitions, by name key
	previous map[string]string

	mu     sync.Mutex
	report *model.PassReport
}

func (p *pass) addError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.report.Errors = append(p.report.Errors, err)
}

func (p *pass) addCreated(name string, changed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.report.Created = append(p.report.Created, name)
	if changed {
		p.report.Changed = append(p.report.Changed, name)
	} else {
		p.report.Unchanged = append(p.report.Unchanged, name)
	}
}

func (s *ReconcileService) start(ctx context.Context, callbacks []func(*model.PassReport), release func()) {
	p := &pass{
		ctx:       ctx,
		release:   release,
		callbacks: callbacks,
		previous:  make(map[string]string),
		report: &model.PassReport{
			PassID:    uuid.NewString(),
			StartedAt: s.now(),
		},
	}
	s.logger.Info("Reconcile pass %s started", p.report.PassID)
	s.drain(p)
}

func (s *ReconcileService) setState(p *pass, state model.ReconcileState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.logger.Debug("Reconcile pass %s: %s", p.report.PassID, state)
}

func (s *ReconcileService) drain(p *pass) {
	s.setState(p, model.StateDraining)

	s.store.ListAll(p.ctx, func(defs []model.TunnelDefinition, err error) {
		if err != nil {
			s.abort(p, model.NewReconcileError(model.ClassFatalToPass, "list", "", err))
			return
		}

		for _, def := range defs {
			p.previous[def.Key()] = def.Payload.Hash
		}

		removals := domain.NewPendingCounter(len(defs), func() { s.scan(p) })
		for _, def := range defs {
			def := def
			s.store.Remove(p.ctx, def, func(err error) {
				if err != nil {
					s.itemFailed(p, model.NewReconcileError(model.ClassPerItem, "remove", def.Name, err))
				} else {
					p.mu.Lock()
					p.report.Removed++
					p.mu.Unlock()
				}
				removals.Done()
			})
		}
	})
}

func (s *ReconcileService) scan(p *pass) {
	s.setState(p, model.StateScanning)

	paths, err := s.scanDir()
	if err != nil {
		s.abort(p, model.NewReconcileError(model.ClassFatalToPass, "scan", s.configDir, err))
		return
	}
	s.logger.Debug("Reconcile pass %s: %d config files found", p.report.PassID, len(paths))
	if len(paths) == 0 {
		s.finish(p)
		return
	}
	s.populate(p, paths)
}

func (s *ReconcileService) populate(p *pass, paths []string) {
	s.setState(p, model.StatePopulating)

	files := domain.NewPendingCounter(len(paths), func() { s.finish(p) })
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		file, err := s.load(path)
		if err != nil {
			s.itemFailed(p, err)
			files.Done()
			continue
		}

		key := model.NameKey(file.Name)
		if other, dup := seen[key]; dup {
			s.logger.Warn("Tunnel name %q is produced by both %s and %s; the last write wins", file.Name, other, path)
			p.mu.Lock()
			p.report.Duplicates = append(p.report.Duplicates, file.Name)
			p.mu.Unlock()
		}
		seen[key] = path

		previous, existed := p.previous[key]
		changed := !existed || previous != file.Fingerprint
		payload := model.Payload{
			ConfigPath: file.Path,
			Config:     string(file.Content),
			Hash:       file.Fingerprint,
		}
		s.store.Create(p.ctx, file.Name, payload, func(err error) {
			if err != nil {
				s.itemFailed(p, model.NewReconcileError(model.ClassPerItem, "create", file.Name, err))
			} else {
				p.addCreated(file.Name, changed)
			}
			files.Done()
		})
	}
}

// load reads, validates and fingerprints one config file
func (s *ReconcileService) load(path string) (*model.TunnelConfigFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewReconcileError(model.ClassPerItem, "read", path, err)
	}
	if err := s.parser.Validate(content); err != nil {
		return nil, model.NewReconcileError(model.ClassPerItem, "parse", path, err)
	}
	return &model.TunnelConfigFile{
		Path:        path,
		Content:     content,
		Fingerprint: domain.Fingerprint(content),
		Name:        model.NameFromPath(path),
	}, nil
}

// scanDir lists the config files of the directory in name order
func (s *ReconcileService) scanDir() ([]string, error) {
	entries, err := os.ReadDir(s.configDir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), "."+s.extension) {
			continue
		}
		paths = append(paths, filepath.Join(s.configDir, name))
	}
	return paths, nil
}

func (s *ReconcileService) itemFailed(p *pass, err error) {
	p.addError(err)
	s.logger.Warn("Reconcile pass %s: %v", p.report.PassID, err)
	if s.alerter != nil {
		s.alerter.Alert(err)
	}
}

func (s *ReconcileService) abort(p *pass, err error) {
	p.mu.Lock()
	p.report.Fatal = err
	p.mu.Unlock()
	s.logger.Error("Reconcile pass %s aborted: %v", p.report.PassID, err)
	if s.alerter != nil {
		s.alerter.Alert(err)
	}
	s.finish(p)
}

func (s *ReconcileService) finish(p *pass) {
	p.mu.Lock()
	report := p.report
	report.FinishedAt = s.now()
	sort.Strings(report.Created)
	sort.Strings(report.Changed)
	sort.Strings(report.Unchanged)
	p.mu.Unlock()

	s.setState(p, model.StateIdle)
	s.logger.Info("Reconcile pass %s finished in %s: removed %d, created %d (%d changed), %d errors",
		report.PassID, report.Duration(), report.Removed, len(report.Created), len(report.Changed), len(report.Errors))
	if s.metrics != nil {
		s.metrics.ObservePass(report)
	}

	complete := func() {
		for _, cb := range p.callbacks {
			if cb != nil {
				cb(report)
			}
		}
		if p.release != nil {
			p.release()
		}
		s.next()
	}
	if s.afterPass != nil {
		s.afterPass(p.ctx, report, complete)
		return
	}
	complete()
}

// next releases the engine or starts the queued follow-up pass
func (s *ReconcileService) next() {
	s.mu.Lock()
	if len(s.queueCtxs) == 0 {
		s.running = false
		s.mu.Unlock()
		return
	}
	ctxs, callbacks := s.queueCtxs, s.waiting
	s.queueCtxs, s.waiting = nil, nil
	s.mu.Unlock()

	ctx, release := joinContexts(ctxs)
	s.start(ctx, callbacks, release)
}

// joinContexts returns a context that is cancelled only once every ctx is done.
// It carries the values of the first one. release must be called when the
// context is no longer needed.
func joinContexts(ctxs []context.Context) (context.Context, func()) {
	joined, cancel := context.WithCancel(context.WithoutCancel(ctxs[0]))
	live := domain.NewPendingCounter(len(ctxs), cancel)
	stops := make([]func() bool, 0, len(ctxs))
	for _, ctx := range ctxs {
		stops = append(stops, context.AfterFunc(ctx, func() { live.Done() }))
	}
	return joined, func() {
		for _, stop := range stops {
			stop()
		}
		cancel()
	}
}
