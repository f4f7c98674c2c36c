package main

import (
	"context"
	"log/slog"

	"dhtcode-go/bus"
	"dhtcode-go/types"

	"github.com/prometheus/client_golang/prometheus"
)

// exporter mirrors HAL environment telemetry into Prometheus collectors.
type exporter struct {
	log *slog.Logger

	temperature *prometheus.GaugeVec
	humidity    *prometheus.GaugeVec
	linkUp      *prometheus.GaugeVec
	errors      *prometheus.CounterVec
}

func newExporter(reg prometheus.Registerer, log *slog.Logger) *exporter {
	e := &exporter{
		log: log,
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dht22_temperature_celsius",
			Help: "Last temperature reading.",
		}, []string{"sensor"}),
		humidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dht22_humidity_percent",
			Help: "Last relative humidity reading.",
		}, []string{"sensor"}),
		linkUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dht22_link_up",
			Help: "1 while the sensor link is up.",
		}, []string{"sensor"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dht22_errors_total",
			Help: "Failed acquisition cycles by error code.",
		}, []string{"sensor", "code"}),
	}
	reg.MustRegister(e.temperature, e.humidity, e.linkUp, e.errors)
	return e
}

// Start subscribes before returning so no retained state is missed.
func (e *exporter) Start(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(bus.T("hal", "cap", "env", "#"))
	go func() {
		defer conn.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-sub.Channel():
				if !ok {
					return
				}
				e.observe(m)
			}
		}
	}()
}

// hal/cap/env/<kind>/<name>/<leaf>
func (e *exporter) observe(m *bus.Message) {
	if m.Topic.Len() != 6 || m.Payload == nil {
		return
	}
	kind, _ := m.Topic.At(3).(string)
	name, _ := m.Topic.At(4).(string)

	switch v := m.Payload.(type) {
	case types.TemperatureValue:
		c := float64(v.DeciC) / 10
		e.temperature.WithLabelValues(name).Set(c)
		e.log.Debug("dht22.temperature", "sensor", name, "celsius", c)
	case types.HumidityValue:
		rh := float64(v.RHx100) / 100
		e.humidity.WithLabelValues(name).Set(rh)
		e.log.Debug("dht22.humidity", "sensor", name, "percent", rh)
	case types.CapabilityStatus:
		// Both capabilities carry the same status; count it once.
		if kind != string(types.KindTemperature) {
			return
		}
		up := 0.0
		if v.Link == types.LinkUp {
			up = 1
		}
		e.linkUp.WithLabelValues(name).Set(up)
		if v.Error == "" {
			return
		}
		e.errors.WithLabelValues(name, v.Error).Inc()
		if v.Link == types.LinkDown {
			e.log.Warn("dht22.link_down", "sensor", name, "code", v.Error)
		} else {
			e.log.Info("dht22.cycle_failed", "sensor", name, "code", v.Error)
		}
	}
}
