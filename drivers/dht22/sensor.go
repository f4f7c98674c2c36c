package dht22

import "tinygo.org/x/drivers"

var _ drivers.Sensor = (*Device)(nil)

// Update runs one acquisition cycle when temperature or humidity is
// requested, using Config.Pulse. The values are then available from
// Temperature and Humidity.
func (d *Device) Update(which drivers.Measurement) error {
	if which&(drivers.Temperature|drivers.Humidity) == 0 {
		return nil
	}
	_, err := d.Read(d.cfg.Pulse)
	return err
}

// Temperature returns the last good temperature in milli-°C.
func (d *Device) Temperature() int32 { return int32(d.Last().DeciCelsius()) * 100 }

// Humidity returns the last good relative humidity in hundredths of a percent.
func (d *Device) Humidity() int32 { return int32(d.Last().DeciRelHumidity()) * 10 }

// Celsius returns the last good temperature in °C.
func (d *Device) Celsius() float32 { return d.Last().Celsius }

// RelHumidity returns the last good relative humidity in percent.
func (d *Device) RelHumidity() float32 { return d.Last().RelHumidity }
