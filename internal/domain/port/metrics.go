package port

import (
	"time"

	"github.com/specht/specht-client/internal/domain/model"
)

// Metrics records reconcile and session activity
type Metrics interface {
	// ObservePass records a finished reconcile pass
	ObservePass(report *model.PassReport)

	// ObserveStoreCall records one registry call
	ObserveStoreCall(op string, elapsed time.Duration, err error)

	// ObserveStatusChange records one applied status event
	ObserveStatusChange(status model.ConnectionStatus)

	// SetTunnels records the size of the tunnel index
	SetTunnels(n int)
}
