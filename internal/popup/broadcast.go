package popup

import "sync"

// ActionClosePopup is the action carried by the message published when a popup closes
const ActionClosePopup = "close-popup"

// Message is an in-process broadcast message
type Message struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// Bus delivers messages to subscribers registered for the message ID.
// Publishing never blocks: a subscriber that is not keeping up loses messages.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]subscriber
}

type subscriber struct {
	id string
	ch chan Message
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]subscriber)}
}

// Subscribe registers interest in messages for id. The returned function
// unsubscribes and closes the channel; calling it more than once is safe.
func (b *Bus) Subscribe(id string) (<-chan Message, func()) {
	ch := make(chan Message, 1)

	b.mu.Lock()
	key := b.nextID
	b.nextID++
	b.subs[key] = subscriber{id: id, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, key)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish sends msg to every subscriber whose id matches msg.ID
func (b *Bus) Publish(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.id != msg.ID {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}
