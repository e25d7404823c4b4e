package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ElectionMetrics tracks protocol-level, per-election commit/reveal/
// finalize/cancel counters, labeled by election id.
type ElectionMetrics struct {
	votesCommitted *prometheus.CounterVec
	votesRevealed  *prometheus.CounterVec
	finalized      *prometheus.CounterVec
	cancelled      *prometheus.CounterVec
}

var (
	electionOnce     sync.Once
	electionRegistry *ElectionMetrics
)

// Election returns the process-wide singleton ElectionMetrics, registering
// its collectors with the default Prometheus registry on first use.
func Election() *ElectionMetrics {
	electionOnce.Do(func() {
		electionRegistry = &ElectionMetrics{
			votesCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "election_votes_committed_total",
				Help: "Count of accepted commit-phase submissions by election.",
			}, []string{"election_id"}),
			votesRevealed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "election_votes_revealed_total",
				Help: "Count of accepted reveal-phase submissions by election.",
			}, []string{"election_id"}),
			finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "election_finalized_total",
				Help: "Count of finalize calls accepted by election.",
			}, []string{"election_id"}),
			cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "election_cancelled_total",
				Help: "Count of cancellations accepted by election.",
			}, []string{"election_id"}),
		}
		prometheus.MustRegister(
			electionRegistry.votesCommitted,
			electionRegistry.votesRevealed,
			electionRegistry.finalized,
			electionRegistry.cancelled,
		)
	})
	return electionRegistry
}

func (m *ElectionMetrics) IncVotesCommitted(electionID uint64) {
	if m == nil {
		return
	}
	m.votesCommitted.WithLabelValues(strconv.FormatUint(electionID, 10)).Inc()
}

func (m *ElectionMetrics) IncVotesRevealed(electionID uint64) {
	if m == nil {
		return
	}
	m.votesRevealed.WithLabelValues(strconv.FormatUint(electionID, 10)).Inc()
}

func (m *ElectionMetrics) IncFinalized(electionID uint64) {
	if m == nil {
		return
	}
	m.finalized.WithLabelValues(strconv.FormatUint(electionID, 10)).Inc()
}

func (m *ElectionMetrics) IncCancelled(electionID uint64) {
	if m == nil {
		return
	}
	m.cancelled.WithLabelValues(strconv.FormatUint(electionID, 10)).Inc()
}
