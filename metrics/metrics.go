package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "asl_queue_size",
		Help: "current matchmaking queue size",
	})
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "asl_active_rooms",
		Help: "current number of live duel rooms",
	})
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "asl_matches_total",
		Help: "total matches formed",
	})
	RoundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "asl_rounds_total",
		Help: "total rounds resolved",
	})
	ClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "asl_classifications_total",
		Help: "total classifier calls by outcome",
	}, []string{"outcome"}) // "ok" または "error"
)

func Init() {
	prometheus.MustRegister(QueueSize, ActiveRooms, MatchesTotal, RoundsTotal, ClassificationsTotal)
}
