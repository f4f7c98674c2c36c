package dht22dev

import (
	"context"
	"sync/atomic"
	"time"

	"dhtcode-go/drivers/dht22"
	"dhtcode-go/errcode"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/types"
	"dhtcode-go/x/mathx"
)

// Device is a single-goroutine HAL device for one DHT22. Controls only
// enqueue; the worker owns every acquisition cycle.
type Device struct {
	id    string
	aTemp core.CapAddr
	aHum  core.CapAddr

	params         types.DHT22Params
	pulse          dht22.StartPulse
	resetOnTimeout bool
	minInterval    time.Duration

	res core.Resources
	drv *dht22.Device

	reqCh      chan opCode
	readQueued atomic.Bool
	consec     atomic.Uint32 // consecutive timed-out cycles
	alive      atomic.Bool
	done       chan struct{}

	// Owned by the worker only:
	lastStart time.Time
}

type opCode uint8

const (
	opRead opCode = iota
	opReset
	opStop
)

// ---- core.Device interface ----

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{
		{
			Domain: "env", Kind: types.KindTemperature, Name: d.id,
			Info: types.Info{
				SchemaVersion: 1, Driver: "dht22",
				Detail: types.TemperatureInfo{Sensor: "dht22", Pin: d.params.Pin},
			},
		},
		{
			Domain: "env", Kind: types.KindHumidity, Name: d.id,
			Info: types.Info{
				SchemaVersion: 1, Driver: "dht22",
				Detail: types.HumidityInfo{Sensor: "dht22", Pin: d.params.Pin},
			},
		},
	}
}

func (d *Device) Init(ctx context.Context) error {
	d.aTemp = core.CapAddr{Domain: "env", Kind: string(types.KindTemperature), Name: d.id}
	d.aHum = core.CapAddr{Domain: "env", Kind: string(types.KindHumidity), Name: d.id}
	d.reqCh = make(chan opCode, 4)
	d.done = make(chan struct{})
	d.alive.Store(true)
	go d.worker(ctx)
	return nil
}

func (d *Device) Close() error {
	if d.alive.Load() {
		select {
		case d.reqCh <- opStop:
		default:
		}
		t := time.NewTimer(300 * time.Millisecond)
		select {
		case <-d.done:
		case <-t.C:
		}
		t.Stop()
	}
	d.drv.Reset()
	d.res.Reg.ReleaseEngine(d.id, d.params.Pin)
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	if !d.alive.Load() {
		return core.EnqueueResult{OK: false, Error: errcode.NotInitialized}, nil
	}
	switch verb {
	case "read":
		// At most one read queued; both capabilities share the cycle.
		if !d.readQueued.CompareAndSwap(false, true) {
			return core.EnqueueResult{OK: false, Error: errcode.Busy}, nil
		}
		if !d.send(opRead) {
			d.readQueued.Store(false)
			return core.EnqueueResult{OK: false, Error: errcode.Busy}, nil
		}
		return core.EnqueueResult{OK: true}, nil
	case "reset":
		if !d.send(opReset) {
			return core.EnqueueResult{OK: false, Error: errcode.Busy}, nil
		}
		return core.EnqueueResult{OK: true}, nil
	case "stats":
		return core.EnqueueResult{OK: true, Reply: d.stats()}, nil
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

func (d *Device) send(op opCode) bool {
	select {
	case d.reqCh <- op:
		return true
	default:
		return false
	}
}

func (d *Device) stats() types.DHT22Stats {
	s := d.drv.Stats()
	return types.DHT22Stats{
		Status:         d.drv.Status().String(),
		Cycles:         s.Cycles,
		Decoded:        s.Decoded,
		ChecksumFailed: s.ChecksumFailed,
		Timeouts:       s.Timeouts,
		ShortFrames:    s.ShortFrames,
		Stale:          s.Stale,
		ConsecTimeouts: uint16(mathx.Min(d.consec.Load(), 0xFFFF)),
	}
}

// ---- Worker ----

func (d *Device) worker(ctx context.Context) {
	defer close(d.done)
	defer d.alive.Store(false)

	for {
		select {
		case <-ctx.Done():
			return
		case op := <-d.reqCh:
			switch op {
			case opRead:
				d.readQueued.Store(false)
				if !d.waitInterval(ctx) {
					return
				}
				d.cycle()
			case opReset:
				d.drv.Reset()
				d.consec.Store(0)
			case opStop:
				return
			}
		}
	}
}

// waitInterval holds the next Start until minInterval has passed since the
// previous one. It returns false if ctx ends first.
func (d *Device) waitInterval(ctx context.Context) bool {
	if d.lastStart.IsZero() {
		return true
	}
	wait := time.Until(d.lastStart.Add(d.minInterval))
	if wait <= 0 {
		return true
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (d *Device) cycle() {
	d.lastStart = time.Now()
	if err := d.drv.Start(d.pulse); err != nil {
		d.emitErr(errcode.MapDriverErr(err), false)
		return
	}
	r := d.drv.AwaitResult(d.resetOnTimeout)

	switch r.Status {
	case dht22.Decoded:
		d.consec.Store(0)
		d.emitReading(r)
	case dht22.TimedOutReset:
		n := d.consec.Add(1)
		if n >= uint32(d.params.FaultThreshold) {
			if n == uint32(d.params.FaultThreshold) {
				println("[hal] dht22", d.id, "no response after", n, "cycles")
			}
			d.emitErr(errcode.SensorFault, true)
			return
		}
		d.emitErr(errcode.Timeout, false)
	default:
		// The sensor answered, so the line is alive.
		d.consec.Store(0)
		d.emitErr(errcode.MapDriverErr(r.Status.Err()), false)
	}
}

func (d *Device) emitReading(r dht22.Reading) {
	// Clamp to the sensor's rated range: -40..80 °C, 0..100 %RH.
	deciC := mathx.Clamp(r.DeciCelsius(), -400, 800)
	rhx100 := mathx.Clamp(uint32(r.DeciRelHumidity())*10, 0, 10000)

	ts := time.Now().UnixNano()
	d.res.Pub.Emit(core.Event{
		Addr:    d.aTemp,
		Payload: types.TemperatureValue{DeciC: deciC},
		TS:      ts,
	})
	d.res.Pub.Emit(core.Event{
		Addr:    d.aHum,
		Payload: types.HumidityValue{RHx100: uint16(rhx100)},
		TS:      ts,
	})
}

func (d *Device) emitErr(code errcode.Code, down bool) {
	ts := time.Now().UnixNano()
	d.res.Pub.Emit(core.Event{Addr: d.aTemp, Err: string(code), Down: down, TS: ts})
	d.res.Pub.Emit(core.Event{Addr: d.aHum, Err: string(code), Down: down, TS: ts})
}
