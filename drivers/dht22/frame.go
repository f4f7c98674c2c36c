package dht22

// FrameWords is the number of queue words that make up one 40-bit frame.
const FrameWords = 3

// RawFrame is one frame as pushed by the timing engine. Only the low byte of
// Checksum is significant.
type RawFrame struct {
	Humidity    uint16
	Temperature uint16
	Checksum    uint16
}

func (f RawFrame) pack() uint64 {
	return uint64(f.Humidity)<<32 | uint64(f.Temperature)<<16 | uint64(f.Checksum)
}

func unpackFrame(v uint64) RawFrame {
	return RawFrame{
		Humidity:    uint16(v >> 32),
		Temperature: uint16(v >> 16),
		Checksum:    uint16(v),
	}
}

// Sum returns the checksum the sensor should have sent for f.
func (f RawFrame) Sum() uint8 {
	return uint8(f.Humidity>>8) + uint8(f.Humidity) +
		uint8(f.Temperature>>8) + uint8(f.Temperature)
}

// Reading is the decoded result of one cycle.
type Reading struct {
	Celsius     float32
	RelHumidity float32
	Status      Status

	Raw        RawFrame
	Calculated uint8 // checksum computed from Raw
}

// DeciCelsius returns tenths of °C.
func (r Reading) DeciCelsius() int16 {
	hi := uint8(r.Raw.Temperature >> 8)
	mag := int16(hi&0x7F)<<8 | int16(uint8(r.Raw.Temperature))
	if hi&0x80 != 0 {
		return -mag
	}
	return mag
}

// DeciRelHumidity returns tenths of %RH.
func (r Reading) DeciRelHumidity() uint16 { return r.Raw.Humidity }

// Decode validates f and converts it to engineering units. When the checksum
// does not match, ok is false, the reading carries ChecksumFailed and no
// temperature or humidity values.
func Decode(f RawFrame) (r Reading, ok bool) {
	r.Raw = f
	r.Calculated = f.Sum()
	if r.Calculated != uint8(f.Checksum) {
		r.Status = ChecksumFailed
		return r, false
	}

	tHi := uint8(f.Temperature >> 8)
	tLo := uint8(f.Temperature)
	sign := float32(1)
	if tHi&0x80 != 0 {
		sign = -1
	}
	r.Celsius = sign * float32(int(tHi&0x7F)*256+int(tLo)) / 10
	r.RelHumidity = float32(f.Humidity) / 10
	r.Status = Decoded
	return r, true
}

// EncodeFrame builds the frame a healthy sensor sends for the given values.
// Temperature uses the sensor's sign-magnitude encoding.
func EncodeFrame(deciRH uint16, deciC int16) RawFrame {
	var t uint16
	if deciC < 0 {
		t = 0x8000 | uint16(-deciC)&0x7FFF
	} else {
		t = uint16(deciC) & 0x7FFF
	}
	f := RawFrame{Humidity: deciRH, Temperature: t}
	f.Checksum = uint16(f.Sum())
	return f
}
