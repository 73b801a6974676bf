package mocks

import (
	"context"
	"sync/atomic"

	"github.com/phrazzld/cadence-api/internal/service"
)

// MockEscalator implements api.Escalator and scheduler.Escalator for testing
type MockEscalator struct {
	RunFn func(ctx context.Context) *service.EscalationReport

	Report *service.EscalationReport
	calls  atomic.Int32
}

// Run implements the Escalator.Run method
func (m *MockEscalator) Run(ctx context.Context) *service.EscalationReport {
	m.calls.Add(1)
	if m.RunFn != nil {
		return m.RunFn(ctx)
	}
	if m.Report == nil {
		return &service.EscalationReport{}
	}
	return m.Report
}

// Calls returns how many times Run was invoked.
func (m *MockEscalator) Calls() int {
	return int(m.calls.Load())
}
