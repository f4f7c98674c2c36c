// Package platform supplies per-target timing engines and the boot setup.
package platform

import (
	"sync"

	"dhtcode-go/drivers/dht22"
	"dhtcode-go/errcode"
)

// Board describes the GPIO range a target exposes.
type Board struct {
	Name             string
	GPIOMin, GPIOMax int
}

// EngineFactory creates a fresh, unconfigured engine for a data pin.
type EngineFactory func(pin int) (dht22.Engine, error)

// Registry hands out one engine per claimed pin.
type Registry struct {
	board     Board
	newEngine EngineFactory

	mu   sync.Mutex
	used map[int]string // pin -> devID
}

func NewRegistry(b Board, f EngineFactory) *Registry {
	return &Registry{board: b, newEngine: f, used: make(map[int]string)}
}

func (r *Registry) Board() Board { return r.board }

func (r *Registry) ClaimEngine(devID string, pin int) (dht22.Engine, error) {
	if pin < r.board.GPIOMin || pin > r.board.GPIOMax {
		return nil, errcode.UnknownPin
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, inUse := r.used[pin]; inUse && owner != devID {
		return nil, errcode.PinInUse
	}
	eng, err := r.newEngine(pin)
	if err != nil {
		return nil, err
	}
	r.used[pin] = devID
	return eng, nil
}

func (r *Registry) ReleaseEngine(devID string, pin int) {
	r.mu.Lock()
	if owner, ok := r.used[pin]; ok && owner == devID {
		delete(r.used, pin)
	}
	r.mu.Unlock()
}

// Owner reports which device holds pin, if any.
func (r *Registry) Owner(pin int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.used[pin]
	return id, ok
}
