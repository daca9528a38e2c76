package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// OutcomeRollbackFailed is the outcome label for cycles that left the
// service stopped.
const OutcomeRollbackFailed = "rollback_failed"

// outcomes lists every value of the outcome label so stale ones reset to 0.
//
//nolint:gochecknoglobals // Read-only label set.
var outcomes = []string{
	string(release.KindNoUpdateNeeded),
	string(release.KindUpdated),
	string(release.KindFailed),
	OutcomeRollbackFailed,
}

// Metrics holds the updater gauges of one managed service.
type Metrics struct {
	registry *prometheus.Registry

	LastRunTimestamp prometheus.Gauge
	LastRunDuration  prometheus.Gauge
	LastOutcome      *prometheus.GaugeVec
	InstalledInfo    *prometheus.GaugeVec
}

// New creates the gauges labelled with service and registers them in a
// private registry.
func New(service string) *Metrics {
	labels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "helper_updater_last_run_timestamp_seconds",
			Help:        "Unix time the last update cycle finished.",
			ConstLabels: labels,
		}),
		LastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "helper_updater_last_run_duration_seconds",
			Help:        "Duration of the last update cycle.",
			ConstLabels: labels,
		}),
		LastOutcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "helper_updater_last_outcome",
			Help:        "1 for the outcome of the last update cycle, 0 for the others.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		InstalledInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "helper_updater_installed_info",
			Help:        "Version installed after the last update cycle.",
			ConstLabels: labels,
		}, []string{"version"}),
	}

	m.registry.MustRegister(m.LastRunTimestamp, m.LastRunDuration, m.LastOutcome, m.InstalledInfo)

	return m
}

// Observe records a finished cycle. installedVersion may be empty.
func (m *Metrics) Observe(o *release.Outcome, installedVersion string) {
	m.LastRunTimestamp.Set(float64(o.FinishedAt.Unix()))
	m.LastRunDuration.Set(o.Duration().Seconds())

	current := string(o.Kind)
	if o.RollbackFailed() {
		current = OutcomeRollbackFailed
	}

	for _, outcome := range outcomes {
		value := 0.0
		if outcome == current {
			value = 1
		}

		m.LastOutcome.WithLabelValues(outcome).Set(value)
	}

	m.InstalledInfo.Reset()

	if installedVersion != "" {
		m.InstalledInfo.WithLabelValues(installedVersion).Set(1)
	}
}

// WriteFile atomically writes the registry in text format to path.
func (m *Metrics) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	return nil
}
