package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "turnmatch"

var (
	// LauncherEvents counts events relayed to launcher observers, by kind.
	LauncherEvents = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "launcher",
		Name:      "events_total",
		Help:      "Matchmaking events relayed to observers.",
	}, []string{"kind"})

	// Presentations 当前处于展示中的匹配界面数量
	Presentations = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Subsystem: "launcher",
		Name:      "presenting",
		Help:      "Matchmaking sheets currently presented.",
	})

	PlatformActions = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "matchmaker",
		Name:      "actions_total",
		Help:      "Sheet actions handled by the match service.",
	}, []string{"action", "result"})

	MatchesCreated = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "matchmaker",
		Name:      "matches_created_total",
		Help:      "Matches created by auto-match.",
	})
)

func init() {
	prom.MustRegister(LauncherEvents, Presentations, PlatformActions, MatchesCreated)
}

// Result maps an error to the "result" label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
