package core

import (
	"context"

	"dhtcode-go/bus"
	"dhtcode-go/errcode"
	"dhtcode-go/types"
	"dhtcode-go/x/timex"
)

const (
	eventQueueLen = 16
	pollQueueLen  = 4
)

type HAL struct {
	conn *bus.Connection
	res  Resources

	dev      map[string]Device  // devID -> device
	capIndex map[CapAddr]string // capability -> devID

	cfgSub  *bus.Subscription
	ctrlSub *bus.Subscription

	poller *Poller
	pollCh chan PollReq

	// Single-threaded publication of device events
	evCh chan Event
}

func NewHAL(conn *bus.Connection, res Resources) *HAL {
	h := &HAL{
		conn:     conn,
		res:      res,
		dev:      map[string]Device{},
		capIndex: map[CapAddr]string{},
		pollCh:   make(chan PollReq, pollQueueLen),
		evCh:     make(chan Event, eventQueueLen),
	}
	h.poller = NewPoller(h.pollCh)
	// HAL provides the emitter to devices.
	h.res.Pub = h
	return h
}

func (h *HAL) Run(ctx context.Context) {
	h.cfgSub = h.conn.Subscribe(topicConfigHAL())
	h.ctrlSub = h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(h.cfgSub)
	defer h.conn.Unsubscribe(h.ctrlSub)

	go h.poller.Run(ctx)

	h.pubHALState("idle", "awaiting_config")
	ready := false
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.pubHALState("stopped", "context_cancelled")
			return
		case msg := <-h.cfgSub.Channel():
			cfg, code := As[types.HALConfig](msg.Payload)
			if code != "" || msg.Payload == nil {
				println("[hal] ignoring config payload:", string(errcode.InvalidPayload))
				continue
			}
			// Additive: devices already built are kept.
			h.applyConfig(ctx, cfg)
			if !ready {
				ready = true
				h.pubHALState("ready", "")
			}
		case m := <-h.ctrlSub.Channel():
			if !ready {
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m) // strictly non-blocking
		case req := <-h.pollCh:
			h.handlePoll(req)
		case ev := <-h.evCh:
			// All device→HAL telemetry is published from this goroutine.
			h.handleEvent(ev)
		}
	}
}

func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	for i := range cfg.Devices {
		dc := cfg.Devices[i]
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		b, ok := lookupBuilder(dc.Type)
		if !ok {
			println("[hal] no builder for type:", dc.Type, "id:", dc.ID)
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{
			ID:     dc.ID,
			Type:   dc.Type,
			Params: dc.Params,
			Res:    h.res,
		})
		if err != nil {
			println("[hal] build failed for:", dc.ID, "err:", err.Error())
			continue
		}
		if err := dev.Init(ctx); err != nil {
			println("[hal] init failed for:", dc.ID, "err:", err.Error())
			_ = dev.Close()
			continue
		}
		h.dev[dev.ID()] = dev

		// Register capabilities, publish retained info + initial status:down
		for _, cs := range dev.Capabilities() {
			a := CapAddr{Domain: cs.Domain, Kind: string(cs.Kind), Name: cs.Name}
			if a.Domain == "" {
				a.Domain = defaultDomainFor(a.Kind)
			}
			if a.Name == "" {
				a.Name = dev.ID()
			}
			h.capIndex[a] = dev.ID()

			h.conn.Publish(h.conn.NewMessage(capInfo(a), cs.Info, true))
			h.conn.Publish(h.conn.NewMessage(
				capStatus(a),
				types.CapabilityStatus{Link: types.LinkDown, TSms: timex.NowMs()},
				true,
			))
		}
	}

	for _, ps := range cfg.Pollers {
		a := CapAddr{Domain: ps.Domain, Kind: string(ps.Kind), Name: ps.Name}
		if _, ok := h.capIndex[a]; !ok {
			println("[hal] poller for unknown capability:", ps.Domain, string(ps.Kind), ps.Name)
			continue
		}
		h.poller.Upsert(ps)
	}
}

func (h *HAL) handleControl(msg *bus.Message) {
	// hal/cap/<domain>/<kind>/<name>/control/<verb>
	if msg.Topic.Len() != 7 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	domain, _ := msg.Topic.At(2).(string)
	kind, _ := msg.Topic.At(3).(string)
	name, _ := msg.Topic.At(4).(string)
	verb, _ := msg.Topic.At(6).(string)
	a := CapAddr{Domain: domain, Kind: kind, Name: name}

	dev := h.owner(a)
	if dev == nil {
		h.replyErr(msg, errcode.UnknownCapability)
		return
	}

	res, err := dev.Control(a, verb, msg.Payload)
	if err != nil {
		h.replyFromError(msg, err)
		return
	}
	if !msg.CanReply() {
		return
	}
	switch {
	case !res.OK:
		code := res.Error
		if code == "" {
			code = errcode.Busy
		}
		h.replyErr(msg, code)
	case res.Reply != nil:
		h.conn.Reply(msg, res.Reply, false)
	default:
		h.replyOK(msg)
	}
}

func (h *HAL) handlePoll(req PollReq) {
	dev := h.owner(req.Addr)
	if dev == nil {
		h.poller.Stop(req.Addr, req.Verb)
		return
	}
	// Busy means a cycle is already queued; the next tick will catch up.
	_, _ = dev.Control(req.Addr, req.Verb, nil)
}

func (h *HAL) owner(a CapAddr) Device {
	id, ok := h.capIndex[a]
	if !ok {
		return nil
	}
	return h.dev[id]
}

func (h *HAL) handleEvent(ev Event) {
	a := ev.Addr

	// Error → retained status:degraded (or down); no value published.
	if ev.Err != "" {
		link := types.LinkDegraded
		if ev.Down {
			link = types.LinkDown
		}
		h.conn.Publish(h.conn.NewMessage(
			capStatus(a),
			types.CapabilityStatus{Link: link, TSms: ev.TS / 1e6, Error: ev.Err},
			true,
		))
		return
	}

	if ev.IsEvent {
		h.conn.Publish(h.conn.NewMessage(capEvent(a, ev.EventTag), ev.Payload, false))
	} else {
		h.conn.Publish(h.conn.NewMessage(capValue(a), ev.Payload, true))
		h.poller.BumpAfter(a, "read", ev.TS)
	}
	h.conn.Publish(h.conn.NewMessage(
		capStatus(a),
		types.CapabilityStatus{Link: types.LinkUp, TSms: ev.TS / 1e6},
		true,
	))
}

func (h *HAL) closeAll() {
	for id, d := range h.dev {
		if err := d.Close(); err != nil {
			println("[hal] close failed for:", id, "err:", err.Error())
		}
	}
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(
		topicHALState(),
		types.HALState{Level: level, Status: status, TSms: timex.NowMs()},
		true,
	))
}

func defaultDomainFor(kind string) string {
	switch kind {
	case string(types.KindTemperature), string(types.KindHumidity):
		return "env"
	default:
		return "io"
	}
}

// ---- HAL as EventEmitter (enqueue to single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}
