package dht22

// Engine is the boundary to whatever produces raw frames: a PIO state
// machine, a bit-banging goroutine or a simulator.
//
// The engine drives the start pulse, samples the sensor's reply, pushes
// FrameWords 16-bit words (humidity, temperature, checksum) into a small
// receive queue and then calls the completion callback. It must not call the
// callback again until the previous call has returned.
//
// QueueDepth, DrainWords and ClearQueue are called from inside the completion
// callback and must not block.
type Engine interface {
	// Configure claims the pin and routes completions to onComplete.
	// It is called once.
	Configure(pin uint8, onComplete func()) error

	// IssueStart triggers one acquisition with a start pulse of ticks.
	IssueStart(ticks uint32)

	QueueDepth() int
	// DrainWords pops up to len(dst) words in arrival order.
	DrainWords(dst []uint16) int
	ClearQueue()

	// ReinitializeSequencer returns the engine to its idle, waiting-for-start
	// state. A reinitialized engine cannot complete until the next IssueStart.
	ReinitializeSequencer()
}
