//go:build !rp2040

package platform

import (
	"dhtcode-go/drivers/dht22"
	"dhtcode-go/drivers/dht22/dht22sim"
)

// Host accepts any pin number a simulated sensor might be wired to.
var Host = Board{Name: "host", GPIOMin: 0, GPIOMax: 63}

// DefaultRegistry serves simulated engines reporting 50.0 %RH / 20.0 °C.
func DefaultRegistry() *Registry {
	return NewRegistry(Host, func(int) (dht22.Engine, error) {
		return dht22sim.New(), nil
	})
}
