package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SecurityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discordlite_security_events_total",
		Help: "Security events recorded, by kind.",
	}, []string{"kind"})

	Challenges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discordlite_challenges_total",
		Help: "Second-factor challenge resolutions, by result.",
	}, []string{"result"})

	LinkResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discordlite_link_resolutions_total",
		Help: "Link code resolutions, by result.",
	}, []string{"result"})

	Bans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discordlite_bans_total",
		Help: "Bans created, by mode (manual or auto).",
	}, []string{"mode"})

	ActiveThreats = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "discordlite_active_threat_origins",
		Help: "Origins currently tracked above LOW threat level.",
	})
)
