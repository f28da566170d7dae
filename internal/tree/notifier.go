package tree

import "sync"

// Notifier broadcasts node-changed signals to subscribed observers. Each
// tree or loader instance owns its own Notifier, so unrelated test runs
// never share emitter state.
type Notifier struct {
	mu        sync.RWMutex
	nextID    int
	observers map[int]func(*Node)
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{observers: make(map[int]func(*Node))}
}

// OnChanged registers cb for node-changed events and returns its
// unsubscribe function. Callbacks run synchronously on the notifying
// goroutine; observers that need decoupling should hand off themselves.
func (n *Notifier) OnChanged(cb func(*Node)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.observers[id] = cb
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.observers, id)
		n.mu.Unlock()
	}
}

// Notify delivers node to every observer. A nil node means "the whole tree
// changed".
func (n *Notifier) Notify(node *Node) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, cb := range n.observers {
		cb(node)
	}
}

// Len returns the number of registered observers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}
