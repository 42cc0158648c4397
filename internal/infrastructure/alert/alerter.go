package alert

import (
	"fmt"
	"io"
	"sync"

	"github.com/specht/specht-client/internal/domain/port"
)

// LogAlerter writes every alert to the logger at error level
type LogAlerter struct {
	logger port.Logger
}

// NewLogAlerter creates a new LogAlerter instance
func NewLogAlerter(logger port.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

// Alert logs err
func (a *LogAlerter) Alert(err error) {
	if err == nil {
		return
	}
	a.logger.Error("Alert: %v", err)
}

// WriterAlerter prints alerts for one-shot CLI commands
type WriterAlerter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterAlerter creates an alerter printing to w
func NewWriterAlerter(w io.Writer) *WriterAlerter {
	return &WriterAlerter{w: w}
}

// Alert prints err on its own line
func (a *WriterAlerter) Alert(err error) {
	if err == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.w, "⚠ %v\n", err)
}

// Fanout delivers each alert to every registered alerter.
// Alerters may be added after construction, e.g. once the control feed is up.
type Fanout struct {
	mu       sync.RWMutex
	alerters []port.Alerter
}

// NewFanout creates a Fanout over alerters
func NewFanout(alerters ...port.Alerter) *Fanout {
	return &Fanout{alerters: alerters}
}

// Add registers another alerter
func (f *Fanout) Add(a port.Alerter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerters = append(f.alerters, a)
}

// Alert forwards err to every alerter
func (f *Fanout) Alert(err error) {
	if err == nil {
		return
	}
	f.mu.RLock()
	alerters := append([]port.Alerter(nil), f.alerters...)
	f.mu.RUnlock()
	for _, a := range alerters {
		a.Alert(err)
	}
}

var (
	_ port.Alerter = (*LogAlerter)(nil)
	_ port.Alerter = (*WriterAlerter)(nil)
	_ port.Alerter = (*Fanout)(nil)
)
