package service

import (
	"context"
	"fmt"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// TunnelService is the entry point of the control surface: it triggers reconcile
// passes, forwards start/stop intents and keeps the state index current.
type TunnelService struct {
	engine    *ReconcileService
	index     *TunnelStateIndex
	sessions  port.SessionController
	alerter   port.Alerter
	publisher port.EventPublisher
	metrics   port.Metrics
	logger    port.Logger
}

// NewTunnelService creates a new TunnelService instance
func NewTunnelService(engine *ReconcileService, index *TunnelStateIndex, sessions port.SessionController,
	alerter port.Alerter, logger port.Logger) *TunnelService {
	s := &TunnelService{
		engine:   engine,
		index:    index,
		sessions: sessions,
		alerter:  alerter,
		logger:   logger,
	}
	engine.SetAfterPass(s.afterPass)
	return s
}

// SetPublisher attaches the control surface event feed
func (s *TunnelService) SetPublisher(p port.EventPublisher) {
	s.publisher = p
}

// SetMetrics attaches a metrics recorder
func (s *TunnelService) SetMetrics(m port.Metrics) {
	s.metrics = m
}

// Index returns the tunnel state index
func (s *TunnelService) Index() *TunnelStateIndex {
	return s.index
}

// TriggerReconcile runs a reconcile pass, rebuilds the index from the resulting
// registry and then calls onDone (which may be nil). It never blocks.
func (s *TunnelService) TriggerReconcile(ctx context.Context, onDone func(*model.PassReport)) {
	s.engine.Reconcile(ctx, onDone)
}

// afterPass rebuilds the index and publishes the pass. The engine holds back
// the next pass until done is called.
func (s *TunnelService) afterPass(ctx context.Context, report *model.PassReport, done func()) {
	if !report.Failed() {
		s.resetSessions(report)
	}
	s.index.Rebuild(ctx, func(err error) {
		if err != nil {
			err = model.NewReconcileError(model.ClassPerItem, "rebuild", "", err)
			s.logger.Error("Failed to rebuild tunnel index: %v", err)
			s.alert(err)
		}
		if s.metrics != nil {
			s.metrics.SetTunnels(s.index.Len())
		}
		s.publish(model.MessageTypeReport, model.NewReportPayload(report))
		s.publish(model.MessageTypeSnapshot, s.Snapshot())
		done()
	})
}

// resetSessions forgets the settled status of tunnels that were dropped or
// whose config changed, so an invalid tunnel can be started again once fixed
func (s *TunnelService) resetSessions(report *model.PassReport) {
	created := make(map[string]bool, len(report.Created))
	for _, name := range report.Created {
		created[model.NameKey(name)] = true
	}
	for _, h := range s.index.Snapshot() {
		if !created[h.Definition.Key()] {
			s.sessions.Reset(h.Name())
		}
	}
	for _, name := range report.Changed {
		s.sessions.Reset(name)
	}
}

// Reconcile runs a pass and waits for it, including the index rebuild
func (s *TunnelService) Reconcile(ctx context.Context) (*model.PassReport, error) {
	done := make(chan *model.PassReport, 1)
	s.TriggerReconcile(ctx, func(report *model.PassReport) { done <- report })
	select {
	case report := <-done:
		return report, report.Fatal
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StartStop starts a disconnected tunnel or stops an active one.
// Tunnels that are disconnecting or invalid are left alone.
func (s *TunnelService) StartStop(name string) error {
	h, ok := s.index.Find(name)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrTunnelNotFound, name)
	}

	switch h.Status {
	case model.StatusDisconnected:
		s.logger.Info("Starting tunnel %s", name)
		if err := s.sessions.Start(h.Definition); err != nil {
			err = fmt.Errorf("failed to start tunnel %s: %w", name, err)
			s.alert(err)
			return err
		}
	case model.StatusConnected, model.StatusConnecting, model.StatusReasserting:
		s.logger.Info("Stopping tunnel %s", name)
		if err := s.sessions.Stop(name); err != nil {
			err = fmt.Errorf("failed to stop tunnel %s: %w", name, err)
			s.alert(err)
			return err
		}
	default:
		s.logger.Debug("Ignoring toggle of tunnel %s in state %s", name, h.Status)
	}
	return nil
}

// Disconnect stops every connected or connecting tunnel
func (s *TunnelService) Disconnect() {
	for _, h := range s.index.Snapshot() {
		switch h.Status {
		case model.StatusConnected, model.StatusConnecting:
			if err := s.sessions.Stop(h.Name()); err != nil {
				s.alert(fmt.Errorf("failed to stop tunnel %s: %w", h.Name(), err))
			}
		}
	}
}

// Snapshot returns the rendering-ready tunnel list
func (s *TunnelService) Snapshot() model.SnapshotPayload {
	return model.SnapshotPayload{
		Tunnels:   s.index.Snapshot(),
		AnyActive: s.index.AnyConnected(),
	}
}

// HandleStatusEvent applies one status change to the index and republishes it
func (s *TunnelService) HandleStatusEvent(ev model.StatusEvent) {
	if !ev.Status.Valid() {
		s.logger.Warn("Ignoring unknown status %q for tunnel %s", ev.Status, ev.Name)
		return
	}
	if !s.index.ApplyStatusChange(ev.Name, ev.Status) {
		s.logger.Debug("Ignoring status %s for unknown tunnel %s", ev.Status, ev.Name)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveStatusChange(ev.Status)
	}
	s.publish(model.MessageTypeStatus, ev)
}

// Run consumes status events until ctx is done or the source closes
func (s *TunnelService) Run(ctx context.Context, source port.StatusSource) error {
	events := source.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.HandleStatusEvent(ev)
		}
	}
}

func (s *TunnelService) alert(err error) {
	if s.alerter != nil {
		s.alerter.Alert(err)
	}
}

func (s *TunnelService) publish(msgType model.MessageType, payload interface{}) {
	if s.publisher != nil {
		s.publisher.Publish(msgType, payload)
	}
}
