package broadcast

import "sync"

// Broadcaster は送信経路（WebSocketなど）への間接参照。
// game側がwebserverをimportしないための分離。
type Broadcaster interface {
	BroadcastMessage(message interface{})
}

var (
	mu          sync.RWMutex
	broadcaster Broadcaster
)

// SetBroadcaster registers the active broadcaster. Nil clears it.
func SetBroadcaster(b Broadcaster) {
	mu.Lock()
	defer mu.Unlock()
	broadcaster = b
}

// Send forwards a message to the registered broadcaster, if any.
func Send(message interface{}) {
	mu.RLock()
	b := broadcaster
	mu.RUnlock()
	if b != nil {
		b.BroadcastMessage(message)
	}
}
