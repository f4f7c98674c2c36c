// Package heartbeat periodically reports runtime memory and sensor
// acquisition counters. The interval can be changed at runtime on
// config/heartbeat.
package heartbeat

import (
	"context"
	"io"
	"runtime"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/types"
	"dhtcode-go/x/conv"
)

var topicConfigHeartbeat = bus.T("config", "heartbeat")

const DefaultInterval = 10 * time.Second

// Config is the payload accepted on config/heartbeat.
type Config struct {
	IntervalMs uint32 `json:"interval_ms"`
}

type Service struct {
	out   io.Writer
	stats bus.Topic
	every time.Duration

	line []byte
	num  [24]byte
}

// New returns a heartbeat that writes to out and requests stats on the
// given control topic each beat. A nil stats topic only reports memory.
func New(out io.Writer, stats bus.Topic) *Service {
	return &Service{out: out, stats: stats, every: DefaultInterval, line: make([]byte, 0, 96)}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, cfgSub *bus.Subscription) {
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.every)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case <-tick.C:
			s.beat(ctx, conn)
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			cfg, ok := msg.Payload.(Config)
			if !ok || cfg.IntervalMs == 0 {
				continue
			}
			s.every = time.Duration(cfg.IntervalMs) * time.Millisecond
			tick.Reset(s.every)
		}
	}
}

func (s *Service) beat(ctx context.Context, conn *bus.Connection) {
	s.writeMem()
	if s.stats == nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	rep, err := conn.RequestWait(rctx, conn.NewMessage(s.stats, nil, false))
	if err != nil {
		return
	}
	if st, ok := rep.Payload.(types.DHT22Stats); ok {
		s.writeStats(st)
	}
}

func (s *Service) writeMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s.line = append(s.line[:0], "[mem]"...)
	s.field("alloc", ms.Alloc)
	s.field("heapInuse", ms.HeapInuse)
	s.field("heapSys", ms.HeapSys)
	s.field("mallocs", ms.Mallocs)
	s.field("frees", ms.Frees)
	s.flush()
}

func (s *Service) writeStats(st types.DHT22Stats) {
	s.line = append(s.line[:0], "[dht22] "...)
	s.line = append(s.line, st.Status...)
	s.field("cycles", uint64(st.Cycles))
	s.field("ok", uint64(st.Decoded))
	s.field("csum", uint64(st.ChecksumFailed))
	s.field("short", uint64(st.ShortFrames))
	s.field("timeouts", uint64(st.Timeouts))
	s.field("consec", uint64(st.ConsecTimeouts))
	s.flush()
}

func (s *Service) field(name string, v uint64) {
	s.line = append(s.line, ' ')
	s.line = append(s.line, name...)
	s.line = append(s.line, ':')
	s.line = append(s.line, conv.Utoa(s.num[:], v)...)
}

func (s *Service) flush() {
	s.line = append(s.line, '\r', '\n')
	_, _ = s.out.Write(s.line)
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	go s.serviceLoop(ctx, conn, cfgSub)
	return nil
}
