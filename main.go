package main

import (
	"context"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/services/hal"
	"dhtcode-go/services/hal/platform"
	"dhtcode-go/services/heartbeat"
	"dhtcode-go/services/monitor"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot")
	ctx := context.Background()

	b := bus.NewBus(8)
	halConn := b.NewConnection("hal")
	uiConn := b.NewConnection("ui")

	println("[main] starting hal …")
	go hal.Run(ctx, halConn)

	console := monitor.Console()
	if err := monitor.New(console).Start(ctx, b.NewConnection("monitor")); err != nil {
		println("[main] monitor failed:", err.Error())
	}
	stats := hal.CtrlTopic("env", "temperature", platform.DefaultSensorID, "stats")
	if err := heartbeat.New(console, stats).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		println("[main] heartbeat failed:", err.Error())
	}

	println("[main] publishing config/hal …")
	uiConn.Publish(uiConn.NewMessage(bus.T("config", "hal"), platform.DefaultSetup(), true))

	select {}
}
