// Command dht22-host runs the DHT22 HAL on a Linux host, either against a
// simulated sensor or a real one bit-banged on a GPIO pin, and exports the
// readings as Prometheus metrics.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
