package dht22dev

import (
	"context"
	"time"

	"dhtcode-go/drivers/dht22"
	"dhtcode-go/errcode"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/types"
	"dhtcode-go/x/timex"
)

func init() { core.RegisterBuilder("dht22", builder{}) }

const (
	// The sensor needs 2 s between conversions.
	defaultMinInterval    = 2 * time.Second
	defaultFaultThreshold = 5
)

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, code := core.As[types.DHT22Params](in.Params)
	if code != "" || in.Params == nil {
		return nil, errcode.InvalidParams
	}
	if p.Pin < 0 || p.Pin > 255 {
		return nil, errcode.InvalidParams
	}
	if p.PulseMs == 0 {
		p.PulseMs = uint8(dht22.DefaultStartPulse / time.Millisecond)
	}
	pulse := dht22.PulseMillis(int(p.PulseMs))
	if err := pulse.Validate(); err != nil {
		return nil, errcode.InvalidParams
	}
	if p.FaultThreshold == 0 {
		p.FaultThreshold = defaultFaultThreshold
	}

	eng, err := in.Res.Reg.ClaimEngine(in.ID, p.Pin)
	if err != nil {
		return nil, err
	}
	drv := dht22.New(eng)
	cfg := dht22.Config{
		Pin:     uint8(p.Pin),
		Debug:   p.Debug,
		Timeout: time.Duration(p.TimeoutMs) * time.Millisecond,
		Pulse:   pulse,
	}
	if err := drv.Configure(cfg); err != nil {
		in.Res.Reg.ReleaseEngine(in.ID, p.Pin)
		return nil, err
	}

	resetOnTimeout := true
	if p.ResetOnTimeout != nil {
		resetOnTimeout = *p.ResetOnTimeout
	}

	return &Device{
		id:             in.ID,
		params:         p,
		pulse:          pulse,
		resetOnTimeout: resetOnTimeout,
		minInterval:    timex.Millis(p.MinIntervalMs, defaultMinInterval),
		res:            in.Res,
		drv:            drv,
	}, nil
}
