package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chartkit/internal/syncer"
)

var (
	syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chartkit_sync_runs_total",
		Help: "Sync attempts by final status.",
	}, []string{"status"})

	outboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chartkit_outbox_pending",
		Help: "Mutations waiting in the outbox.",
	})

	libraryCharts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chartkit_library_charts",
		Help: "Non-trashed charts in the library.",
	})

	libraryBackups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chartkit_library_backups",
		Help: "Backup snapshots held by the library.",
	})
)

func observeStatus(status syncer.Status) {
	switch status {
	case syncer.StatusSynced, syncer.StatusError:
		syncRuns.WithLabelValues(string(status)).Inc()
	}
}

func observeStats(stats *StatsData) {
	outboxPending.Set(float64(stats.Pending))
	libraryCharts.Set(float64(stats.Charts))
	libraryBackups.Set(float64(stats.Backups))
}
