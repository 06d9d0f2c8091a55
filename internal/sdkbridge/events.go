package sdkbridge

import (
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// SdkReady is raised when the host answers an init request.
type SdkReady struct {
	RequestID string
	Success   bool
	Err       error
}

// WalletReady is raised when the host answers a connect request. Addresses is
// empty on failure; index 0 is the universal account and index 1, when
// present, an existing sub-account.
type WalletReady struct {
	RequestID string
	Addresses []string
	Err       error
}

// SubAccountReady is raised when the host answers a sub-account request.
// Address is empty on failure.
type SubAccountReady struct {
	RequestID string
	Address   string
	Err       error
}

// TransactionSent is raised when the host answers a send request. Hash is
// empty on failure.
type TransactionSent struct {
	RequestID string
	Hash      string
	Err       error
}

// Subscription detaches a listener.
type Subscription interface {
	Unsubscribe()
}

type eventKind int

const (
	sdkReadyEvent eventKind = iota
	walletReadyEvent
	subAccountReadyEvent
	transactionSentEvent
)

type listenerRegistry struct {
	mu     sync.Mutex
	nextID uint64
	// kind -> listener id -> func(interface{}), ordered by subscription
	listeners map[eventKind]*treemap.Map
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{listeners: make(map[eventKind]*treemap.Map)}
}

func (r *listenerRegistry) add(kind eventKind, fn func(interface{})) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	m, ok := r.listeners[kind]
	if !ok {
		m = treemap.NewWith(utils.UInt64Comparator)
		r.listeners[kind] = m
	}
	m.Put(id, fn)
	return &subscription{registry: r, kind: kind, id: id}
}

func (r *listenerRegistry) remove(kind eventKind, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.listeners[kind]; ok {
		m.Remove(id)
	}
}

func (r *listenerRegistry) count(kind eventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.listeners[kind]; ok {
		return m.Size()
	}
	return 0
}

// emit calls every listener of kind in subscription order on the calling goroutine.
func (r *listenerRegistry) emit(kind eventKind, event interface{}) {
	r.mu.Lock()
	var fns []interface{}
	if m, ok := r.listeners[kind]; ok {
		fns = m.Values()
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn.(func(interface{}))(event)
	}
}

type subscription struct {
	once     sync.Once
	registry *listenerRegistry
	kind     eventKind
	id       uint64
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.registry.remove(s.kind, s.id)
	})
}
