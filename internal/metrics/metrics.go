// Package metrics provides process-level counters for RPC traffic, signing
// and deployments, reported by the CLI in verbose mode.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds counters using atomics for thread safety.
type Metrics struct {
	// RPC metrics
	rpcCallsTotal   atomic.Int64
	rpcErrorsTotal  atomic.Int64
	rpcRetriesTotal atomic.Int64
	rpcLatencyNanos atomic.Int64

	// Signing metrics
	signaturesTotal atomic.Int64
	signErrorsTotal atomic.Int64

	// Deployment metrics
	deploymentsTotal     atomic.Int64
	deploymentsFailed    atomic.Int64
	verificationFailures atomic.Int64
}

// Global is the process-wide metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordRPCCall records one JSON-RPC round trip with its duration and outcome.
func (m *Metrics) RecordRPCCall(duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())
	if err != nil {
		m.rpcErrorsTotal.Add(1)
	}
}

// RecordRPCRetry records a retried transport attempt.
func (m *Metrics) RecordRPCRetry() {
	m.rpcRetriesTotal.Add(1)
}

// RecordSignature records a signing attempt.
func (m *Metrics) RecordSignature(err error) {
	m.signaturesTotal.Add(1)
	if err != nil {
		m.signErrorsTotal.Add(1)
	}
}

// RecordDeployment records a finished deployment. Verification failures are
// counted separately from other failures.
func (m *Metrics) RecordDeployment(err error, verificationFailed bool) {
	m.deploymentsTotal.Add(1)
	if err != nil {
		m.deploymentsFailed.Add(1)
	}
	if verificationFailed {
		m.verificationFailures.Add(1)
	}
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	RPCCallsTotal        int64 `json:"rpc_calls_total"`
	RPCErrorsTotal       int64 `json:"rpc_errors_total"`
	RPCRetriesTotal      int64 `json:"rpc_retries_total"`
	RPCLatencyNanos      int64 `json:"rpc_latency_nanos"`
	SignaturesTotal      int64 `json:"signatures_total"`
	SignErrorsTotal      int64 `json:"sign_errors_total"`
	DeploymentsTotal     int64 `json:"deployments_total"`
	DeploymentsFailed    int64 `json:"deployments_failed"`
	VerificationFailures int64 `json:"verification_failures"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RPCCallsTotal:        m.rpcCallsTotal.Load(),
		RPCErrorsTotal:       m.rpcErrorsTotal.Load(),
		RPCRetriesTotal:      m.rpcRetriesTotal.Load(),
		RPCLatencyNanos:      m.rpcLatencyNanos.Load(),
		SignaturesTotal:      m.signaturesTotal.Load(),
		SignErrorsTotal:      m.signErrorsTotal.Load(),
		DeploymentsTotal:     m.deploymentsTotal.Load(),
		DeploymentsFailed:    m.deploymentsFailed.Load(),
		VerificationFailures: m.verificationFailures.Load(),
	}
}

// RPCCallsTotal returns the total number of RPC calls made.
func (m *Metrics) RPCCallsTotal() int64 {
	return m.rpcCallsTotal.Load()
}

// RPCErrorsTotal returns the total number of RPC errors.
func (m *Metrics) RPCErrorsTotal() int64 {
	return m.rpcErrorsTotal.Load()
}

// RPCLatencyAvgMs returns the average RPC latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) RPCLatencyAvgMs() float64 {
	calls := m.rpcCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	nanos := m.rpcLatencyNanos.Load()
	return float64(nanos) / float64(calls) / 1e6
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.rpcCallsTotal.Store(0)
	m.rpcErrorsTotal.Store(0)
	m.rpcRetriesTotal.Store(0)
	m.rpcLatencyNanos.Store(0)
	m.signaturesTotal.Store(0)
	m.signErrorsTotal.Store(0)
	m.deploymentsTotal.Store(0)
	m.deploymentsFailed.Store(0)
	m.verificationFailures.Store(0)
}
