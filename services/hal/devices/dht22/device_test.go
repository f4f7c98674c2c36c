package dht22dev

import (
	"context"
	"testing"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/drivers/dht22"
	"dhtcode-go/drivers/dht22/dht22sim"
	"dhtcode-go/errcode"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/services/hal/platform"
	"dhtcode-go/types"
)

type rig struct {
	conn *bus.Connection
	reg  *platform.Registry
	eng  *dht22sim.Engine
}

// newRig runs HAL with one simulated engine handed out for every claim.
func newRig(t *testing.T) *rig {
	t.Helper()
	eng := dht22sim.New()
	eng.Latency = time.Millisecond
	reg := platform.NewRegistry(platform.Host, func(int) (dht22.Engine, error) { return eng, nil })

	b := bus.NewBus(16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go core.NewHAL(b.NewConnection("hal"), core.Resources{Reg: reg}).Run(ctx)
	return &rig{conn: b.NewConnection("test"), reg: reg, eng: eng}
}

func (r *rig) configure(t *testing.T, devs ...types.HALDevice) {
	t.Helper()
	st := r.conn.Subscribe(bus.T("hal", "state"))
	defer r.conn.Unsubscribe(st)
	r.conn.Publish(r.conn.NewMessage(bus.T("config", "hal"), types.HALConfig{Devices: devs}, true))
	next(t, st, func(m *bus.Message) bool { return m.Payload.(types.HALState).Level == "ready" })
}

func (r *rig) control(t *testing.T, id, verb string) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	topic := core.CtrlTopic(core.CapAddr{Domain: "env", Kind: "temperature", Name: id}, verb)
	m, err := r.conn.RequestWait(ctx, r.conn.NewMessage(topic, nil, false))
	if err != nil {
		t.Fatalf("%s %s: %v", id, verb, err)
	}
	return m.Payload
}

func next(t *testing.T, s *bus.Subscription, ok func(*bus.Message) bool) *bus.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-s.Channel():
			if ok(m) {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out on %v", s.Topic())
			return nil
		}
	}
}

func anyMsg(*bus.Message) bool { return true }

func linkIs(l types.Link) func(*bus.Message) bool {
	return func(m *bus.Message) bool { return m.Payload.(types.CapabilityStatus).Link == l }
}

func dev(id string, p types.DHT22Params) types.HALDevice {
	if p.MinIntervalMs == 0 {
		p.MinIntervalMs = 1
	}
	return types.HALDevice{ID: id, Type: "dht22", Params: p}
}

func TestReadPublishesBothCapabilities(t *testing.T) {
	r := newRig(t)
	r.eng.Script(dht22sim.Cycle{Frame: dht22.EncodeFrame(651, -32)})
	r.configure(t, dev("d0", types.DHT22Params{Pin: 26}))

	temp := r.conn.Subscribe(bus.T("hal", "cap", "env", "temperature", "d0", "value"))
	hum := r.conn.Subscribe(bus.T("hal", "cap", "env", "humidity", "d0", "value"))
	status := r.conn.Subscribe(bus.T("hal", "cap", "env", "humidity", "d0", "status"))

	if rep := r.control(t, "d0", "read"); rep != (types.OKReply{OK: true}) {
		t.Fatalf("reply %#v", rep)
	}
	if v := next(t, temp, anyMsg).Payload.(types.TemperatureValue); v.DeciC != -32 {
		t.Fatalf("temperature %+v", v)
	}
	if v := next(t, hum, anyMsg).Payload.(types.HumidityValue); v.RHx100 != 6510 {
		t.Fatalf("humidity %+v", v)
	}
	next(t, status, linkIs(types.LinkUp))

	if st := r.eng.State(); st.LastTicks != 600 || st.Pin != 26 {
		t.Fatalf("engine %+v", st)
	}
}

func TestValuesAreClampedToRatedRange(t *testing.T) {
	r := newRig(t)
	r.eng.Script(dht22sim.Cycle{Frame: dht22.EncodeFrame(1200, 950)})
	r.configure(t, dev("hot", types.DHT22Params{Pin: 26}))
	temp := r.conn.Subscribe(bus.T("hal", "cap", "env", "temperature", "hot", "value"))
	hum := r.conn.Subscribe(bus.T("hal", "cap", "env", "humidity", "hot", "value"))

	r.control(t, "hot", "read")
	if v := next(t, temp, anyMsg).Payload.(types.TemperatureValue); v.DeciC != 800 {
		t.Fatalf("temperature %+v", v)
	}
	if v := next(t, hum, anyMsg).Payload.(types.HumidityValue); v.RHx100 != 10000 {
		t.Fatalf("humidity %+v", v)
	}
}

func TestTimeoutsDegradeThenFault(t *testing.T) {
	r := newRig(t)
	stall := dht22sim.Cycle{Fault: dht22sim.FaultStall}
	r.eng.Script(stall, stall)
	r.configure(t, dev("s0", types.DHT22Params{Pin: 26, FaultThreshold: 2}))
	status := r.conn.Subscribe(bus.T("hal", "cap", "env", "temperature", "s0", "status"))
	next(t, status, linkIs(types.LinkDown)) // initial

	r.control(t, "s0", "read")
	m := next(t, status, anyMsg)
	if s := m.Payload.(types.CapabilityStatus); s.Link != types.LinkDegraded || s.Error != string(errcode.Timeout) {
		t.Fatalf("first timeout %+v", s)
	}

	r.control(t, "s0", "read")
	m = next(t, status, anyMsg)
	if s := m.Payload.(types.CapabilityStatus); s.Link != types.LinkDown || s.Error != string(errcode.SensorFault) {
		t.Fatalf("second timeout %+v", s)
	}
	if st := r.control(t, "s0", "stats").(types.DHT22Stats); st.ConsecTimeouts != 2 || st.Status != "TIMED_OUT_RESET" {
		t.Fatalf("stats %+v", st)
	}

	// Reset-on-timeout re-armed the engine; the script is now exhausted.
	r.control(t, "s0", "read")
	next(t, status, linkIs(types.LinkUp))
	st := r.control(t, "s0", "stats").(types.DHT22Stats)
	if st.ConsecTimeouts != 0 || st.Timeouts != 2 || st.Decoded != 1 || st.Cycles != 3 {
		t.Fatalf("stats after recovery %+v", st)
	}
	if r.eng.State().Resets != 2 {
		t.Fatalf("resets %d", r.eng.State().Resets)
	}
}

func TestChecksumFailureDegrades(t *testing.T) {
	r := newRig(t)
	r.eng.Script(dht22sim.Cycle{Frame: dht22.EncodeFrame(500, 200), Fault: dht22sim.FaultCorrupt})
	r.configure(t, dev("c0", types.DHT22Params{Pin: 26}))
	status := r.conn.Subscribe(bus.T("hal", "cap", "env", "temperature", "c0", "status"))

	r.control(t, "c0", "read")
	m := next(t, status, linkIs(types.LinkDegraded))
	if s := m.Payload.(types.CapabilityStatus); s.Error != string(errcode.ChecksumFailed) {
		t.Fatalf("status %+v", s)
	}
}

func TestResetControl(t *testing.T) {
	r := newRig(t)
	r.configure(t, dev("r0", types.DHT22Params{Pin: 26}))
	if rep := r.control(t, "r0", "reset"); rep != (types.OKReply{OK: true}) {
		t.Fatalf("reply %#v", rep)
	}
	deadline := time.Now().Add(time.Second)
	for r.eng.State().Resets != 1 {
		if time.Now().After(deadline) {
			t.Fatal("reset not applied")
		}
		time.Sleep(time.Millisecond)
	}
	if rep := r.control(t, "r0", "calibrate"); rep.(types.ErrorReply).Error != string(errcode.Unsupported) {
		t.Fatalf("reply %#v", rep)
	}
}

func TestMinIntervalSpacesCycles(t *testing.T) {
	r := newRig(t)
	r.configure(t, dev("m0", types.DHT22Params{Pin: 26, MinIntervalMs: 60}))
	val := r.conn.Subscribe(bus.T("hal", "cap", "env", "temperature", "m0", "value"))

	r.control(t, "m0", "read")
	next(t, val, anyMsg)
	t0 := time.Now()
	r.control(t, "m0", "read")
	next(t, val, anyMsg)
	if el := time.Since(t0); el < 40*time.Millisecond {
		t.Fatalf("second cycle after %v", el)
	}
}

func TestBadParamsAndPinConflicts(t *testing.T) {
	r := newRig(t)
	r.configure(t,
		types.HALDevice{ID: "noparams", Type: "dht22"},
		dev("badpulse", types.DHT22Params{Pin: 26, PulseMs: 9}),
		dev("offboard", types.DHT22Params{Pin: 99}),
		dev("first", types.DHT22Params{Pin: 26}),
		dev("second", types.DHT22Params{Pin: 26}),
	)
	for _, id := range []string{"noparams", "badpulse", "offboard", "second"} {
		if rep := r.control(t, id, "read"); rep.(types.ErrorReply).Error != string(errcode.UnknownCapability) {
			t.Fatalf("%s: %#v", id, rep)
		}
	}
	if owner, _ := r.reg.Owner(26); owner != "first" {
		t.Fatalf("pin 26 owned by %q", owner)
	}
}
