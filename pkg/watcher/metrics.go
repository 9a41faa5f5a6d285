package watcher

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lottery"

// Metrics is a set of lottery collectors updated by the Watcher.
type Metrics struct {
	entries   prometheus.Counter
	staked    prometheus.Counter
	draws     prometheus.Counter
	lastPrize prometheus.Gauge
	round     prometheus.Gauge
}

// NewMetrics creates lottery collectors and registers them with the given
// registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Number of accepted lottery entries",
		}),
		staked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staked_gas_total",
			Help:      "Amount of GAS staked by all entries",
		}),
		draws: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draws_total",
			Help:      "Number of completed draws",
		}),
		lastPrize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_prize_gas",
			Help:      "Amount of GAS paid to the latest winner",
		}),
		round: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round",
			Help:      "Number of the latest completed round",
		}),
	}
	for _, c := range []prometheus.Collector{m.entries, m.staked, m.draws, m.lastPrize, m.round} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) entered(amount *big.Int) {
	m.entries.Inc()
	m.staked.Add(toGAS(amount))
}

func (m *Metrics) winnerPicked(prize *big.Int, round *big.Int) {
	m.draws.Inc()
	m.lastPrize.Set(toGAS(prize))
	f, _ := new(big.Float).SetInt(round).Float64()
	m.round.Set(f)
}

// toGAS converts an amount of the smallest GAS units to GAS.
func toGAS(amount *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), big.NewFloat(1e8)).Float64()
	return f
}
