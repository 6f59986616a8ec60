package channel

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricEventsPersisted  = "events_persisted_total"
	MetricEventsRemoved    = "events_removed_total"
	MetricTransactions     = "transactions_total"
	MetricOpenTransactions = "open_transactions"

	metricsNamespace = "chanq"

	outcomeCommit       = "commit"
	outcomeRollback     = "rollback"
	outcomeCommitFailed = "commit_failed"
)

// metrics counts committed effects only: events written or claimed inside a
// transaction that rolls back are not reported.
type metrics struct {
	persisted    *prometheus.CounterVec
	removed      *prometheus.CounterVec
	transactions *prometheus.CounterVec
	active       prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		persisted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      MetricEventsPersisted,
				Help:      "Events committed to a channel.",
			},
			[]string{"channel"},
		),
		removed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      MetricEventsRemoved,
				Help:      "Events removed from a channel by a committed transaction.",
			},
			[]string{"channel"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      MetricTransactions,
				Help:      "Finished transactions by outcome.",
			},
			[]string{"outcome"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      MetricOpenTransactions,
				Help:      "Transactions currently active.",
			},
		),
	}
}

// register adds the collectors to reg. Collectors already registered by an
// earlier provider on the same registry are reused.
func (m *metrics) register(reg prometheus.Registerer) error {
	var errs []error
	m.persisted = registerOrReuse(reg, m.persisted, &errs)
	m.removed = registerOrReuse(reg, m.removed, &errs)
	m.transactions = registerOrReuse(reg, m.transactions, &errs)
	m.active = registerOrReuse(reg, m.active, &errs)
	return errors.Join(errs...)
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C, errs *[]error) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	*errs = append(*errs, err)
	return c
}

// Collectors returns the provider's collectors, for callers that register
// them on their own.
func (p *Provider) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.metrics.persisted,
		p.metrics.removed,
		p.metrics.transactions,
		p.metrics.active,
	}
}
