package kb

import (
	"fmt"
	"sync"

	"github.com/signalsfoundry/relay-link-sim/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventPlatformUpdated EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type     EventType
	Platform model.PlatformState
}

// NodeRecord is a network endpoint tracked in the KB: an identity plus
// the hardware address it answers to, optionally tied to a platform.
type NodeRecord struct {
	ID         string
	MAC        string
	PlatformID string
}

// KnowledgeBase is an in-memory, thread-safe store for platforms and nodes.
type KnowledgeBase struct {
	mu sync.RWMutex

	platforms map[string]*model.PlatformState
	nodes     map[string]*NodeRecord

	subs      map[int]func(Event)
	nextSubID int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		platforms: make(map[string]*model.PlatformState),
		nodes:     make(map[string]*NodeRecord),
		subs:      make(map[int]func(Event)),
	}
}

// AddPlatform adds a new platform. It returns an error if the ID already exists.
func (kb *KnowledgeBase) AddPlatform(p *model.PlatformState) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.platforms[p.ID]; exists {
		return fmt.Errorf("platform with ID %q already exists", p.ID)
	}
	// store pointer so that motion models can update in-place
	kb.platforms[p.ID] = p
	return nil
}

// AddNode adds a new node record. It returns an error if the ID already
// exists or if the referenced platform does not exist.
func (kb *KnowledgeBase) AddNode(n *NodeRecord) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.nodes[n.ID]; exists {
		return fmt.Errorf("node with ID %q already exists", n.ID)
	}
	if n.PlatformID != "" {
		if _, ok := kb.platforms[n.PlatformID]; !ok {
			return fmt.Errorf("platform with ID %q not found for node", n.PlatformID)
		}
	}
	kb.nodes[n.ID] = n
	return nil
}

// GetPlatform returns the platform with the given ID, or nil if not found.
func (kb *KnowledgeBase) GetPlatform(id string) *model.PlatformState {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.platforms[id]
}

// GetNode returns the node record with the given ID, or nil if not found.
func (kb *KnowledgeBase) GetNode(id string) *NodeRecord {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.nodes[id]
}

// ListPlatforms returns a snapshot slice of all platforms.
func (kb *KnowledgeBase) ListPlatforms() []*model.PlatformState {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.PlatformState, 0, len(kb.platforms))
	for _, p := range kb.platforms {
		res = append(res, p)
	}
	return res
}

// ListNodes returns a snapshot slice of all node records.
func (kb *KnowledgeBase) ListNodes() []*NodeRecord {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*NodeRecord, 0, len(kb.nodes))
	for _, n := range kb.nodes {
		res = append(res, n)
	}
	return res
}

// UpdatePlatformPosition updates a platform's coordinates and notifies subscribers.
func (kb *KnowledgeBase) UpdatePlatformPosition(id string, pos model.Position) error {
	kb.mu.Lock()
	p, ok := kb.platforms[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("platform with ID %q not found", id)
	}
	p.Coordinates = pos
	event := Event{
		Type:     EventPlatformUpdated,
		Platform: *p, // copy for safety
	}
	subs := make([]func(Event), 0, len(kb.subs))
	for _, sub := range kb.subs {
		subs = append(subs, sub)
	}
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Subscribe registers a callback for KB events. It returns an unsubscribe
// function that is safe to call more than once. Subscriptions are keyed by
// token, so removing one never invalidates another.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSubID
	kb.nextSubID++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}
