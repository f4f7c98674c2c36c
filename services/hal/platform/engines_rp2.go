//go:build rp2040

package platform

import "dhtcode-go/drivers/dht22"

// Pico exposes GP0..GP28.
var Pico = Board{Name: "pico", GPIOMin: 0, GPIOMax: 28}

// DefaultRegistry runs each sensor on the PIO0 timing program.
func DefaultRegistry() *Registry {
	return NewRegistry(Pico, func(int) (dht22.Engine, error) {
		return dht22.NewPIOEngine(), nil
	})
}
