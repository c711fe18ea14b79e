package device

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoplant_device_activations_total",
		Help: "Completed device activations by device and trigger source.",
	}, []string{"device", "source"})

	activationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoplant_device_activation_failures_total",
		Help: "Activations refused or aborted, by device and reason.",
	}, []string{"device", "reason"})

	activeState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "autoplant_device_active",
		Help: "1 while the device relay is energised.",
	}, []string{"device"})
)
