package main

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func msg(kind, leaf string, payload any) *bus.Message {
	return &bus.Message{Topic: bus.T("hal", "cap", "env", kind, "dht0", leaf), Payload: payload}
}

func TestExporterObserve(t *testing.T) {
	e := newExporter(prometheus.NewRegistry(), newLogger(io.Discard, true))

	e.observe(msg("temperature", "value", types.TemperatureValue{DeciC: -32}))
	e.observe(msg("humidity", "value", types.HumidityValue{RHx100: 6510}))
	e.observe(msg("temperature", "status", types.CapabilityStatus{Link: types.LinkUp}))

	if v := testutil.ToFloat64(e.temperature.WithLabelValues("dht0")); v != -3.2 {
		t.Fatalf("temperature %v", v)
	}
	if v := testutil.ToFloat64(e.humidity.WithLabelValues("dht0")); v != 65.1 {
		t.Fatalf("humidity %v", v)
	}
	if v := testutil.ToFloat64(e.linkUp.WithLabelValues("dht0")); v != 1 {
		t.Fatalf("link %v", v)
	}

	timeout := types.CapabilityStatus{Link: types.LinkDegraded, Error: "timeout"}
	e.observe(msg("temperature", "status", timeout))
	e.observe(msg("humidity", "status", timeout))
	e.observe(msg("temperature", "status", types.CapabilityStatus{Link: types.LinkDown, Error: "sensor_fault"}))

	if v := testutil.ToFloat64(e.errors.WithLabelValues("dht0", "timeout")); v != 1 {
		t.Fatalf("timeouts %v", v)
	}
	if v := testutil.ToFloat64(e.errors.WithLabelValues("dht0", "sensor_fault")); v != 1 {
		t.Fatalf("faults %v", v)
	}
	if v := testutil.ToFloat64(e.linkUp.WithLabelValues("dht0")); v != 0 {
		t.Fatalf("link %v", v)
	}
}

func TestExporterFollowsBusAndServes(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newExporter(reg, newLogger(io.Discard, false))

	b := bus.NewBus(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx, b.NewConnection("exporter"))

	pub := b.NewConnection("hal")
	pub.Publish(pub.NewMessage(bus.T("hal", "cap", "env", "temperature", "dht0", "value"), types.TemperatureValue{DeciC: 215}, true))

	deadline := time.After(time.Second)
	for testutil.ToFloat64(e.temperature.WithLabelValues("dht0")) != 21.5 {
		select {
		case <-deadline:
			t.Fatal("value not exported")
		case <-time.After(time.Millisecond):
		}
	}

	srv := httptest.NewServer(metricsMux(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `dht22_temperature_celsius{sensor="dht0"} 21.5`) {
		t.Fatalf("scrape body:\n%s", body)
	}
}
