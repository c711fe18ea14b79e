package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoplant_jobs_fired_total",
		Help: "Activations completed without error, by device and source.",
	}, []string{"device", "source"})

	commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoplant_commands_total",
		Help: "Remote commands received, by outcome.",
	}, []string{"outcome"})

	reloadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autoplant_schedule_reload_failures_total",
		Help: "Schedule file reloads that kept the previous schedule.",
	})
)
