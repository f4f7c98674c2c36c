package core

import (
	"context"

	"dhtcode-go/drivers/dht22"
	"dhtcode-go/errcode"
	"dhtcode-go/types"
)

// ---- Capability & device model ----

// CapAddr is the public address hal/cap/<domain>/<kind>/<name>.
type CapAddr struct {
	Domain string
	Kind   string
	Name   string
}

type CapabilitySpec struct {
	Domain string // defaults from Kind when empty
	Kind   types.Kind
	Name   string // defaults to the device ID when empty
	Info   types.Info
}

// EnqueueResult is the immediate answer to a control. Controls never block
// on hardware; work is queued to the device's own goroutine.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
	Reply any // optional reply payload in place of OKReply
}

type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	Control(addr CapAddr, verb string, payload any) (EnqueueResult, error)
	Close() error // release claimed resources
}

// ---- Device → HAL telemetry (single shape) ----
// An Event is a value update for a capability, published retained on
// .../value with status up. Err, when non-empty, publishes only
// .../status=degraded; with Down set the link is reported down instead.
// IsEvent publishes non-retained on .../event[/<tag>].

type Event struct {
	Addr     CapAddr
	Payload  any
	TS       int64 // unix ns
	Err      string
	Down     bool
	IsEvent  bool
	EventTag string
}

// EventEmitter is provided by HAL. Emit must not block; false means the
// event was dropped under pressure.
type EventEmitter interface {
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

// ResourceRegistry hands out timing engines bound to data pins. A pin has at
// most one owner.
type ResourceRegistry interface {
	ClaimEngine(devID string, pin int) (dht22.Engine, error)
	ReleaseEngine(devID string, pin int)
}

type Resources struct {
	Reg ResourceRegistry
	Pub EventEmitter // set by HAL
}

// Builder input
type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}
