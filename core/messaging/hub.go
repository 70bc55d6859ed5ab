package messaging

import "sync"

// Hub fans new messages out to the subscribers of a channel.
// Publishing never blocks: a subscriber whose buffer is full is dropped and its channel closed.
// Dropped subscribers catch up by listing messages after the last id they received.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]map[*Subscription]struct{} // {channelID: subscriptions}
	bufSize int
	closed  bool
}

// Subscription receives the messages posted to one channel until it is closed or dropped.
type Subscription struct {
	C         <-chan Message
	ch        chan Message
	channelID string
	hub       *Hub
}

func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &Hub{
		subs:    make(map[string]map[*Subscription]struct{}),
		bufSize: bufSize,
	}
}

// Subscribe registers a new subscriber to channelID. A closed hub returns an already closed subscription.
func (h *Hub) Subscribe(channelID string) *Subscription {
	ch := make(chan Message, h.bufSize)
	sub := &Subscription{C: ch, ch: ch, channelID: channelID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	if h.subs[channelID] == nil {
		h.subs[channelID] = make(map[*Subscription]struct{})
	}
	h.subs[channelID][sub] = struct{}{}
	return sub
}

// Close unsubscribes. It is safe to call more than once and after the subscriber was dropped.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// remove must be the only place closing a subscriber channel.
func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscription) {
	subs, ok := h.subs[sub.channelID]
	if !ok {
		return
	}
	if _, ok = subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subs, sub.channelID)
	}
	close(sub.ch)
}

// Publish delivers msg to every subscriber of its channel and returns how many were dropped.
func (h *Hub) Publish(msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dropped int
	for sub := range h.subs[msg.ChannelID] {
		select {
		case sub.ch <- msg:
		default:
			h.removeLocked(sub)
			dropped++
		}
	}
	return dropped
}

// Subscribers returns the number of subscribers of a channel.
func (h *Hub) Subscribers(channelID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[channelID])
}

// CloseChannel drops every subscriber of a channel, eg. when it is deleted.
func (h *Hub) CloseChannel(channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[channelID] {
		h.removeLocked(sub)
	}
}

// Close drops every subscriber. Later subscriptions are closed right away.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, subs := range h.subs {
		for sub := range subs {
			h.removeLocked(sub)
		}
	}
}
