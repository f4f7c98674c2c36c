// Package monitor prints environment readings and link changes published
// by HAL to a console.
package monitor

import (
	"context"
	"io"

	"dhtcode-go/bus"
	"dhtcode-go/types"
	"dhtcode-go/x/conv"
)

var topicEnv = bus.T("hal", "cap", "env", "#")

type capKey struct{ kind, name string }

type Service struct {
	out  io.Writer
	line []byte
	num  [24]byte
	link map[capKey]types.Link
}

// New returns a monitor writing to out, or to the target console when out
// is nil.
func New(out io.Writer) *Service {
	if out == nil {
		out = Console()
	}
	return &Service{out: out, line: make([]byte, 0, 64), link: map[capKey]types.Link{}}
}

// Start the monitor service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	sub := conn.Subscribe(topicEnv)
	go s.serviceLoop(ctx, conn, sub)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, sub *bus.Subscription) {
	defer conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			println("[monitor] stopping")
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			s.handle(msg)
		}
	}
}

// hal/cap/env/<kind>/<name>/<leaf>
func (s *Service) handle(msg *bus.Message) {
	if msg.Topic.Len() != 6 || msg.Payload == nil {
		return
	}
	kind, _ := msg.Topic.At(3).(string)
	name, _ := msg.Topic.At(4).(string)
	leaf, _ := msg.Topic.At(5).(string)

	switch leaf {
	case "value":
		switch v := msg.Payload.(type) {
		case types.TemperatureValue:
			s.printValue(name, kind, conv.Fixed(s.num[:], int64(v.DeciC), 1), "C")
		case types.HumidityValue:
			s.printValue(name, kind, conv.Fixed(s.num[:], int64(v.RHx100), 2), "%")
		}
	case "status":
		st, ok := msg.Payload.(types.CapabilityStatus)
		if !ok {
			return
		}
		k := capKey{kind, name}
		if prev, seen := s.link[k]; seen && prev == st.Link {
			return
		}
		s.link[k] = st.Link
		s.begin(name, kind)
		s.line = append(s.line, "link "...)
		s.line = append(s.line, string(st.Link)...)
		if st.Error != "" {
			s.line = append(s.line, " ("...)
			s.line = append(s.line, st.Error...)
			s.line = append(s.line, ')')
		}
		s.flush()
	}
}

func (s *Service) printValue(name, kind string, num []byte, unit string) {
	s.begin(name, kind)
	s.line = append(s.line, num...)
	s.line = append(s.line, unit...)
	s.flush()
}

func (s *Service) begin(name, kind string) {
	s.line = append(s.line[:0], name...)
	s.line = append(s.line, ' ')
	s.line = append(s.line, kind...)
	s.line = append(s.line, ": "...)
}

func (s *Service) flush() {
	s.line = append(s.line, '\r', '\n')
	_, _ = s.out.Write(s.line)
}
