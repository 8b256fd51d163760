// Package registry owns the bidirectional mapping between engine-local
// entity identifiers and the opaque tags handed to the scripting side. The
// engine reuses identifiers after disposal; tags never change meaning and are
// never reassigned, so every boundary call resolves through here instead of
// trusting an engine id. The registry also records the stream-id lists
// senders and receivers were created with, because the engine does not expose
// that association after the fact.
package registry

import (
	"sync"

	"github.com/SB-IM/zircon/internal/bridge/errs"
	"github.com/SB-IM/zircon/internal/bridge/rtc"
)

type record[T any] struct {
	id    string
	tag   string
	value T
}

// Store is the id/tag mapping for one entity kind. All operations are O(1)
// and safe for concurrent use.
type Store[T any] struct {
	mu    sync.RWMutex
	byID  map[string]record[T]
	byTag map[string]record[T]
}

func newStore[T any]() *Store[T] {
	return &Store[T]{
		byID:  make(map[string]record[T]),
		byTag: make(map[string]record[T]),
	}
}

// Add inserts or replaces the record for id. A previous record under the same
// id is superseded and its tag becomes unresolvable. Binding a tag that is
// already held by a different id fails with a DuplicateTagError.
func (s *Store[T]) Add(id, tag string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byTag[tag]; ok && prev.id != id {
		return errs.New(errs.DuplicateTag, "tag %q is already bound to entity %q", tag, prev.id)
	}
	if prev, ok := s.byID[id]; ok {
		delete(s.byTag, prev.tag)
	}
	rec := record[T]{id: id, tag: tag, value: value}
	s.byID[id] = rec
	s.byTag[tag] = rec
	return nil
}

// ByTag resolves a tag to its entity. A miss is not an error here; boundary
// callers turn it into a NotFoundError.
func (s *Store[T]) ByTag(tag string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byTag[tag]
	return rec.value, ok
}

// Tag is the reverse lookup, used when converting engine objects back to
// tagged wire values.
func (s *Store[T]) Tag(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	return rec.tag, ok
}

// RemoveByID removes the record for id. Removing an absent id is a no-op.
func (s *Store[T]) RemoveByID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	delete(s.byTag, rec.tag)
}

// Clear empties the store.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]record[T])
	s.byTag = make(map[string]record[T])
}

// Len reports the number of live records.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Registry groups the per-kind stores, the peer-connection set and the
// stream-id metadata under one lifetime. It is constructed at service start
// and emptied as a whole at the reload boundary.
type Registry struct {
	// gen makes Clear mutually exclusive with in-flight creation inserts so a
	// reload cannot resurrect a half-registered record.
	gen sync.RWMutex

	Tracks       *Store[rtc.Track]
	Senders      *Store[rtc.Sender]
	Receivers    *Store[rtc.Receiver]
	Transceivers *Store[rtc.Transceiver]

	pcMu            sync.RWMutex
	peerConnections map[string]rtc.PeerConnection

	streamMu  sync.RWMutex
	streamIDs map[interface{}][]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		Tracks:          newStore[rtc.Track](),
		Senders:         newStore[rtc.Sender](),
		Receivers:       newStore[rtc.Receiver](),
		Transceivers:    newStore[rtc.Transceiver](),
		peerConnections: make(map[string]rtc.PeerConnection),
		streamIDs:       make(map[interface{}][]string),
	}
}

// Hold blocks a concurrent Clear for the duration of a creation insert. The
// returned release function must be called once the insert is registered.
func (r *Registry) Hold() (release func()) {
	r.gen.RLock()
	return r.gen.RUnlock
}

// AddPeerConnection registers a peer connection under its tag. Peer
// connections have no engine-local id, so the tag is the only key.
func (r *Registry) AddPeerConnection(tag string, pc rtc.PeerConnection) error {
	r.pcMu.Lock()
	defer r.pcMu.Unlock()
	if _, ok := r.peerConnections[tag]; ok {
		return errs.New(errs.DuplicateTag, "peer connection tag %q is already bound", tag)
	}
	r.peerConnections[tag] = pc
	return nil
}

// PeerConnection resolves a peer-connection tag.
func (r *Registry) PeerConnection(tag string) (rtc.PeerConnection, bool) {
	r.pcMu.RLock()
	defer r.pcMu.RUnlock()
	pc, ok := r.peerConnections[tag]
	return pc, ok
}

// RemovePeerConnection removes a peer connection by tag. Idempotent.
func (r *Registry) RemovePeerConnection(tag string) {
	r.pcMu.Lock()
	defer r.pcMu.Unlock()
	delete(r.peerConnections, tag)
}

// AllPeerConnections snapshots the live peer connections for bulk disposal.
func (r *Registry) AllPeerConnections() []rtc.PeerConnection {
	r.pcMu.RLock()
	defer r.pcMu.RUnlock()
	out := make([]rtc.PeerConnection, 0, len(r.peerConnections))
	for _, pc := range r.peerConnections {
		out = append(out, pc)
	}
	return out
}

// SetStreamIDs records the stream-id list an entity was created with. The key
// is the entity value itself: in some creation paths the engine has not
// assigned an id yet, so identity is the only stable handle.
func (r *Registry) SetStreamIDs(owner interface{}, ids []string) {
	r.streamMu.Lock()
	defer r.streamMu.Unlock()
	r.streamIDs[owner] = ids
}

// StreamIDs returns the recorded stream-id list for an entity, or nil.
func (r *Registry) StreamIDs(owner interface{}) []string {
	r.streamMu.RLock()
	defer r.streamMu.RUnlock()
	return r.streamIDs[owner]
}

// Clear empties every store and the metadata. It waits for in-flight
// creation inserts to release their hold, and no tag issued before Clear
// resolves afterward.
func (r *Registry) Clear() {
	r.gen.Lock()
	defer r.gen.Unlock()

	r.Tracks.Clear()
	r.Senders.Clear()
	r.Receivers.Clear()
	r.Transceivers.Clear()

	r.pcMu.Lock()
	r.peerConnections = make(map[string]rtc.PeerConnection)
	r.pcMu.Unlock()

	r.streamMu.Lock()
	r.streamIDs = make(map[interface{}][]string)
	r.streamMu.Unlock()
}
