// Package bus is a small in-process pub/sub bus with MQTT-style topics.
//
// Topics are token slices. "+" matches one token and "#" matches the rest
// (including nothing) when used as the last token of a subscription.
// Retained messages are replayed to matching subscribers; publishing a
// retained message with a nil payload clears it. Delivery never blocks the
// publisher: a full subscriber queue drops its oldest message.
package bus

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

const (
	wildOne = "+"
	wildAll = "#"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of comparable tokens (strings or integers).
type Topic []any

// T builds a Topic. It panics on token types that cannot be map keys.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		switch tok.(type) {
		case string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		default:
			panic("bus: topic token must be a string, integer or bool")
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int     { return len(t) }
func (t Topic) At(i int) any { return t[i] }

// Append returns a new Topic with tokens added; t is not modified.
func (t Topic) Append(tokens ...any) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	return append(out, T(tokens...)...)
}

// Match reports whether the concrete topic matches the pattern.
func Match(pattern, topic Topic) bool {
	for i, p := range pattern {
		if p == wildAll {
			return true
		}
		if i >= len(topic) {
			return false
		}
		if p != wildOne && p != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// CanReply reports whether the sender is waiting for a reply.
func (m *Message) CanReply() bool { return m != nil && len(m.ReplyTo) > 0 }

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

func (s *Subscription) deliver(m *Message) {
	select {
	case s.ch <- m:
		return
	default:
	}
	// Drop oldest if queue full.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- m:
	default:
	}
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

type Bus struct {
	mu   sync.Mutex
	root *node
	qLen int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

// NewMessage is a convenience constructor.
func (b *Bus) NewMessage(t Topic, payload any, retained bool) *Message {
	return &Message{Topic: t, Payload: payload, Retained: retained}
}

// walk returns the node for an exact token path, creating it if asked.
func (b *Bus) walk(t Topic, create bool) *node {
	n := b.root
	for _, tok := range t {
		child := n.children[tok]
		if child == nil {
			if !create {
				return nil
			}
			if n.children == nil {
				n.children = make(map[any]*node)
			}
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	return n
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.walk(sub.topic, true)
	n.subs = append(n.subs, sub)

	// Replay retained messages under the pattern.
	collectRetained(b.root, sub.topic, func(m *Message) { sub.deliver(m) })
}

func collectRetained(n *node, pattern Topic, fn func(*Message)) {
	if len(pattern) == 0 {
		if n.retained != nil {
			fn(n.retained)
		}
		return
	}
	switch tok := pattern[0]; tok {
	case wildAll:
		var all func(*node)
		all = func(x *node) {
			if x.retained != nil {
				fn(x.retained)
			}
			for _, c := range x.children {
				all(c)
			}
		}
		all(n)
	case wildOne:
		for _, c := range n.children {
			collectRetained(c, pattern[1:], fn)
		}
	default:
		if c := n.children[tok]; c != nil {
			collectRetained(c, pattern[1:], fn)
		}
	}
}

// matchSubs calls fn for every subscription whose pattern matches t.
func matchSubs(n *node, t Topic, fn func(*Subscription)) {
	if c := n.children[wildAll]; c != nil {
		for _, s := range c.subs {
			fn(s)
		}
	}
	if len(t) == 0 {
		for _, s := range n.subs {
			fn(s)
		}
		return
	}
	if c := n.children[wildOne]; c != nil {
		matchSubs(c, t[1:], fn)
	}
	if c := n.children[t[0]]; c != nil && t[0] != wildOne && t[0] != wildAll {
		matchSubs(c, t[1:], fn)
	}
}

// Publish delivers a message to all matching subscribers.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	matchSubs(b.root, msg.Topic, func(s *Subscription) { s.deliver(msg) })

	if !msg.Retained {
		return
	}
	if msg.Payload == nil {
		if n := b.walk(msg.Topic, false); n != nil {
			n.retained = nil
		}
		return
	}
	b.walk(msg.Topic, true).retained = msg
}

func (b *Bus) unsubscribe(sub *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.walk(sub.topic, false)
	if n == nil {
		return false
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
	seq  uint32
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) NewMessage(t Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(t, payload, retained)
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(t Topic) *Subscription {
	sub := &Subscription{topic: t, ch: make(chan *Message, c.bus.qLen), conn: c}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Connection) Unsubscribe(sub *Subscription) {
	if !c.bus.unsubscribe(sub) {
		return
	}
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions owned by this connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, sub := range subs {
		if c.bus.unsubscribe(sub) {
			close(sub.ch)
		}
	}
}

// Reply publishes payload on the request's ReplyTo topic.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if !req.CanReply() {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}

// Request assigns a private ReplyTo topic, subscribes to it and publishes
// msg. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	c.mu.Lock()
	c.seq++
	n := c.seq
	c.mu.Unlock()
	msg.ReplyTo = T("_reply", c.id, strconv.FormatUint(uint64(n), 10))
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

var ErrNoReply = errors.New("bus: reply channel closed")

// RequestWait publishes msg and waits for the first reply or ctx.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m, ok := <-sub.Channel():
		if !ok {
			return nil, ErrNoReply
		}
		return m, nil
	}
}
