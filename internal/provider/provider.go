// Package provider implements the pub/sub channel that delivers
// asynchronous binary payloads (image bytes) to rendered nodes. Delivery is
// fire-and-forget with at most one cached payload per subscription id, so a
// subscriber arriving after the payload still receives it.
package provider

import "sync"

// Subscription ties a rendered node to an external data source. Data
// carries source-specific keys, for images the attachment key.
type Subscription struct {
	ID       string
	Type     string
	Data     map[string]any
	Listener func(payload []byte)
}

// Provider owns the subscription registry and the payload cache. The host
// is informed about subscribe/unsubscribe through the two callbacks so it
// can start or stop producing the payload.
type Provider struct {
	mu     sync.Mutex
	subs   map[string][]*Subscription
	cached map[string][]byte
	closed bool

	onSubscribe   func(Subscription)
	onUnsubscribe func(Subscription)
}

// New builds a provider. Either callback may be nil.
func New(onSubscribe, onUnsubscribe func(Subscription)) *Provider {
	return &Provider{
		subs:          map[string][]*Subscription{},
		cached:        map[string][]byte{},
		onSubscribe:   onSubscribe,
		onUnsubscribe: onUnsubscribe,
	}
}

// Subscribe registers sub and immediately replays the cached payload for
// its id, if one arrived before the subscriber.
func (p *Provider) Subscribe(sub *Subscription) {
	if sub == nil || sub.ID == "" {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.subs[sub.ID] = append(p.subs[sub.ID], sub)
	payload, hasCached := p.cached[sub.ID]
	p.mu.Unlock()

	if p.onSubscribe != nil {
		p.onSubscribe(*sub)
	}
	if hasCached && sub.Listener != nil {
		sub.Listener(payload)
	}
}

// Unsubscribe removes sub from the registry. The cached payload stays so a
// remount does not require the host to resend it.
func (p *Provider) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	p.mu.Lock()
	list := p.subs[sub.ID]
	for i, candidate := range list {
		if candidate == sub {
			p.subs[sub.ID] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(p.subs[sub.ID]) == 0 {
		delete(p.subs, sub.ID)
	}
	p.mu.Unlock()

	if p.onUnsubscribe != nil {
		p.onUnsubscribe(*sub)
	}
}

// Notify caches the payload for id and fans it out to every matching
// subscription. A later payload for the same id replaces the cached one.
func (p *Provider) Notify(id string, payload []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.cached[id] = payload
	listeners := make([]func([]byte), 0, len(p.subs[id]))
	for _, sub := range p.subs[id] {
		if sub.Listener != nil {
			listeners = append(listeners, sub.Listener)
		}
	}
	p.mu.Unlock()

	for _, listener := range listeners {
		listener(payload)
	}
}

// Close drops every subscription and cached payload. Later Subscribe and
// Notify calls are ignored.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.subs = map[string][]*Subscription{}
	p.cached = map[string][]byte{}
}
