package platform

import "dhtcode-go/types"

const (
	DefaultSensorID = "dht0"
	DefaultDataPin  = 26
	DefaultPollMs   = 2500
)

// DefaultSetup is the boot configuration: one DHT22 on GP26 with a 2 ms
// start pulse, read every 2.5 s.
func DefaultSetup() types.HALConfig {
	return Setup(DefaultSensorID, DefaultDataPin, DefaultPollMs)
}

// Setup builds a single-sensor configuration polled every pollMs.
func Setup(id string, pin int, pollMs uint32) types.HALConfig {
	return types.HALConfig{
		Devices: []types.HALDevice{{
			ID:     id,
			Type:   "dht22",
			Params: types.DHT22Params{Pin: pin, PulseMs: 2},
		}},
		Pollers: []types.PollSpec{{
			Domain:     "env",
			Kind:       types.KindTemperature,
			Name:       id,
			Verb:       "read",
			IntervalMs: pollMs,
		}},
	}
}
