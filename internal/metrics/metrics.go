// Package metrics provides Prometheus metrics for the ideas lifecycle and
// the voting protocol.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Vote outcomes recorded by ObserveVote.
const (
	VoteAccepted     = "accepted"
	VoteAlreadyVoted = "already_voted"
	VoteIdeaGone     = "idea_gone"
	VoteFailed       = "failed"
)

// IdeasMetrics groups the counters of the ideas service. A nil
// *IdeasMetrics is valid and records nothing.
type IdeasMetrics struct {
	IdeasCreated       prometheus.Counter
	CreateCompensation *prometheus.CounterVec
	IdeasReleased      prometheus.Counter
	IdeasDeleted       prometheus.Counter
	BlobRemoveFailures prometheus.Counter
	Votes              *prometheus.CounterVec
	LedgerAppendErrors prometheus.Counter
}

// NewIdeasMetrics creates the metrics and registers them with registry.
func NewIdeasMetrics(registry prometheus.Registerer) (*IdeasMetrics, error) {
	m := &IdeasMetrics{
		IdeasCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ideas_created_total",
			Help: "Total number of ideas created",
		}),
		CreateCompensation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ideas_create_compensations_total",
			Help: "Blob removals issued after a failed record insert, by result",
		}, []string{"result"}),
		IdeasReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ideas_released_total",
			Help: "Total number of public ideas released by their owner",
		}),
		IdeasDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ideas_deleted_total",
			Help: "Total number of private ideas deleted by their owner",
		}),
		BlobRemoveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ideas_blob_remove_failures_total",
			Help: "Best-effort audio removals that failed",
		}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ideas_votes_total",
			Help: "Vote attempts by outcome",
		}, []string{"outcome"}),
		LedgerAppendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ideas_ledger_append_errors_total",
			Help: "Committed votes whose ledger append failed",
		}),
	}
	if registry != nil {
		if err := registry.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register ideas metrics: %w", err)
		}
	}
	return m, nil
}

func (m *IdeasMetrics) IncCreated() {
	if m != nil {
		m.IdeasCreated.Inc()
	}
}

// ObserveCompensation records a compensating blob removal.
func (m *IdeasMetrics) ObserveCompensation(err error) {
	if m == nil {
		return
	}
	result := "removed"
	if err != nil {
		result = "failed"
	}
	m.CreateCompensation.WithLabelValues(result).Inc()
}

func (m *IdeasMetrics) IncReleased() {
	if m != nil {
		m.IdeasReleased.Inc()
	}
}

func (m *IdeasMetrics) IncDeleted() {
	if m != nil {
		m.IdeasDeleted.Inc()
	}
}

func (m *IdeasMetrics) IncBlobRemoveFailure() {
	if m != nil {
		m.BlobRemoveFailures.Inc()
	}
}

func (m *IdeasMetrics) ObserveVote(outcome string) {
	if m != nil {
		m.Votes.WithLabelValues(outcome).Inc()
	}
}

func (m *IdeasMetrics) IncLedgerAppendError() {
	if m != nil {
		m.LedgerAppendErrors.Inc()
	}
}

// Describe implements the prometheus.Collector interface.
func (m *IdeasMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.IdeasCreated.Describe(ch)
	m.CreateCompensation.Describe(ch)
	m.IdeasReleased.Describe(ch)
	m.IdeasDeleted.Describe(ch)
	m.BlobRemoveFailures.Describe(ch)
	m.Votes.Describe(ch)
	m.LedgerAppendErrors.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *IdeasMetrics) Collect(ch chan<- prometheus.Metric) {
	m.IdeasCreated.Collect(ch)
	m.CreateCompensation.Collect(ch)
	m.IdeasReleased.Collect(ch)
	m.IdeasDeleted.Collect(ch)
	m.BlobRemoveFailures.Collect(ch)
	m.Votes.Collect(ch)
	m.LedgerAppendErrors.Collect(ch)
}
