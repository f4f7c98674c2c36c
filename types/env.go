package types

// ------------------------
// Temperature & humidity
// ------------------------

type TemperatureInfo struct {
	Sensor string `json:"sensor"` // "dht22"
	Pin    int    `json:"pin"`    // data GPIO
}

type HumidityInfo struct {
	Sensor string `json:"sensor"`
	Pin    int    `json:"pin"`
}

type TemperatureValue struct {
	// Tenths of °C (e.g. 231 => 23.1°C).
	DeciC int16 `json:"deci_c"`
}

type HumidityValue struct {
	// Hundredths of %RH (0..10000 for 0..100.00%).
	RHx100 uint16 `json:"rh_x100"`
}

// ------------------------
// DHT22 device
// ------------------------

// DHT22Params configures a "dht22" HAL device. Zero fields take defaults.
type DHT22Params struct {
	Pin            int    `json:"pin"`
	PulseMs        uint8  `json:"pulse_ms,omitempty"`        // 1..5, default 2
	TimeoutMs      uint16 `json:"timeout_ms,omitempty"`      // default 15
	ResetOnTimeout *bool  `json:"reset_on_timeout,omitempty"` // default true
	MinIntervalMs  uint32 `json:"min_interval_ms,omitempty"` // default 2000
	FaultThreshold uint16 `json:"fault_threshold,omitempty"` // consecutive timeouts, default 5
	Debug          bool   `json:"debug,omitempty"`
}

// DHT22Stats is the reply to the "stats" control.
type DHT22Stats struct {
	Status         string `json:"status"`
	Cycles         uint32 `json:"cycles"`
	Decoded        uint32 `json:"decoded"`
	ChecksumFailed uint32 `json:"checksum_failed"`
	Timeouts       uint32 `json:"timeouts"`
	ShortFrames    uint32 `json:"short_frames"`
	Stale          uint32 `json:"stale"`
	ConsecTimeouts uint16 `json:"consec_timeouts"`
}
