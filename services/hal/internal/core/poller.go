package core

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"time"

	"dhtcode-go/types"
	"dhtcode-go/x/timex"
)

// PollReq asks the HAL loop to run a control verb on a capability.
type PollReq struct {
	Addr CapAddr
	Verb string
}

type pollKey struct {
	addr CapAddr
	verb string
}

type pollItem struct {
	key    pollKey
	due    int64
	every  time.Duration
	jitter time.Duration
	index  int
}

type pollHeap []*pollItem

func (h pollHeap) Len() int           { return len(h) }
func (h pollHeap) Less(i, j int) bool { return h[i].due < h[j].due }
func (h pollHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *pollHeap) Push(x any)        { it := x.(*pollItem); it.index = len(*h); *h = append(*h, it) }
func (h *pollHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	it.index = -1
	*h = old[:n-1]
	return it
}

// Poller fires PollReqs on per-capability schedules. A full out channel
// drops the fire; the schedule still advances.
type Poller struct {
	mu    sync.Mutex
	wake  chan struct{}
	items map[pollKey]*pollItem
	h     pollHeap
	rand  *rand.Rand
	out   chan<- PollReq
}

func NewPoller(out chan<- PollReq) *Poller {
	return &Poller{
		wake:  make(chan struct{}, 1),
		items: make(map[pollKey]*pollItem),
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
		out:   out,
	}
}

// Upsert adds or replaces a schedule from a PollSpec. The first fire is
// after the interval plus jitter in [0..JitterMs].
func (p *Poller) Upsert(ps types.PollSpec) {
	if ps.IntervalMs == 0 || ps.Verb == "" {
		return
	}
	key := pollKey{
		addr: CapAddr{Domain: ps.Domain, Kind: string(ps.Kind), Name: ps.Name},
		verb: ps.Verb,
	}
	every := time.Duration(ps.IntervalMs) * time.Millisecond
	jitter := time.Duration(ps.JitterMs) * time.Millisecond

	p.mu.Lock()
	due := time.Now().Add(p.jittered(every, jitter)).UnixNano()
	if it := p.items[key]; it != nil {
		it.every, it.jitter, it.due = every, jitter, due
		heap.Fix(&p.h, it.index)
	} else {
		it = &pollItem{key: key, due: due, every: every, jitter: jitter, index: -1}
		p.items[key] = it
		heap.Push(&p.h, it)
	}
	p.mu.Unlock()
	p.wakeup()
}

func (p *Poller) Stop(a CapAddr, verb string) {
	key := pollKey{addr: a, verb: verb}
	p.mu.Lock()
	if it := p.items[key]; it != nil {
		heap.Remove(&p.h, it.index)
		delete(p.items, key)
	}
	p.mu.Unlock()
	p.wakeup()
}

// BumpAfter re-arms a schedule one interval after a value was emitted by
// other means (e.g. a manual read), so polls do not stack up behind it.
func (p *Poller) BumpAfter(a CapAddr, verb string, lastEmitNs int64) {
	key := pollKey{addr: a, verb: verb}
	now := time.Now()
	p.mu.Lock()
	if it := p.items[key]; it != nil {
		due := time.Unix(0, lastEmitNs).Add(it.every)
		if due.Before(now) {
			due = now
		}
		it.due = due.UnixNano()
		heap.Fix(&p.h, it.index)
	}
	p.mu.Unlock()
	p.wakeup()
}

// Len reports the number of active schedules.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.h)
}

func (p *Poller) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := p.nextWait()
		if wait < 0 {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}
		if wait == 0 {
			if req, ok := p.popDue(); ok {
				select {
				case p.out <- req:
				default:
				}
			}
			continue
		}

		timex.ResetTimer(timer, time.Duration(wait))
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-timer.C:
		}
	}
}

func (p *Poller) popDue() (PollReq, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.h) == 0 || p.h[0].due > time.Now().UnixNano() {
		return PollReq{}, false
	}
	it := p.h[0]
	it.due = time.Now().Add(p.jittered(it.every, it.jitter)).UnixNano()
	heap.Fix(&p.h, 0)
	return PollReq{Addr: it.key.addr, Verb: it.key.verb}, true
}

func (p *Poller) nextWait() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.h) == 0 {
		return -1
	}
	now := time.Now().UnixNano()
	if p.h[0].due <= now {
		return 0
	}
	return p.h[0].due - now
}

func (p *Poller) wakeup() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) jittered(interval, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return interval
	}
	return interval + time.Duration(p.rand.Int63n(int64(jitter)+1))
}
