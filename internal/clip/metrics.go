package clip

import "github.com/prometheus/client_golang/prometheus"

var (
	// clipsCreated counts clips successfully stored by Put.
	clipsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quickclip_clips_created_total",
			Help: "Total number of clips created.",
		},
	)

	// clipsRemoved counts removals by reason (deleted, lazy_expiry, sweep).
	clipsRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickclip_clips_removed_total",
			Help: "Total number of clips removed, by reason.",
		},
		[]string{"reason"},
	)

	// codeCollisions counts allocation attempts that hit an occupied code.
	codeCollisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quickclip_code_collisions_total",
			Help: "Total number of code allocation collisions.",
		},
	)

	// sweepDuration records the wall time of one full sweep pass.
	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quickclip_sweep_duration_seconds",
			Help:    "Duration of expired-clip sweep passes in seconds.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
	)

	sweepErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quickclip_sweep_errors_total",
			Help: "Total number of errors encountered by the sweeper.",
		},
	)

	// clipsStored is refreshed after each sweep from Backend.Count.
	clipsStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quickclip_clips_stored",
			Help: "Number of clip records currently held by the backend.",
		},
	)
)

func init() {
	prometheus.MustRegister(clipsCreated, clipsRemoved, codeCollisions, sweepDuration, sweepErrors, clipsStored)
}
