// Package hal runs the hardware abstraction service: it builds devices from
// the retained config/hal message and exposes them as capabilities under
// hal/cap/<domain>/<kind>/<name>.
package hal

import (
	"context"

	"dhtcode-go/bus"
	"dhtcode-go/services/hal/internal/core"
	"dhtcode-go/services/hal/platform"

	_ "dhtcode-go/services/hal/devices/dht22"
)

// ResourceRegistry hands out timing engines bound to data pins.
type ResourceRegistry = core.ResourceRegistry

// Run serves HAL on conn with the target's default engines until ctx ends.
func Run(ctx context.Context, conn *bus.Connection) {
	RunWith(ctx, conn, platform.DefaultRegistry())
}

// RunWith serves HAL using reg for engines.
func RunWith(ctx context.Context, conn *bus.Connection, reg ResourceRegistry) {
	core.NewHAL(conn, core.Resources{Reg: reg}).Run(ctx)
}

// CtrlTopic returns hal/cap/<domain>/<kind>/<name>/control/<verb>.
func CtrlTopic(domain, kind, name, verb string) bus.Topic {
	return core.CtrlTopic(core.CapAddr{Domain: domain, Kind: kind, Name: name}, verb)
}
