// Package session tracks the server's live sessions.
//
// A session is one accepted connection. It is registered when the connection is accepted,
// learns its sequence length from the client handshake, advances as items are written,
// and is cleared when the connection ends, however it ends.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Store keeps the state of live sessions.
type Store interface {
	New(id uuid.UUID, peer string) error
	Get(id uuid.UUID) (Session, error)
	SetLength(id uuid.UUID, length uint16) error
	Advance(id uuid.UUID, position uint16) error
	Clear(id uuid.UUID) error
	List() []Session
}

// Session is a snapshot of one connection's progress.
type Session struct {
	ID       uuid.UUID
	Peer     string
	Started  time.Time
	Length   uint16
	Position uint16
}

// Done reports whether every item has been written.
func (s Session) Done() bool {
	return s.Length > 0 && s.Position == s.Length
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	sessions map[uuid.UUID]Session
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]Session),
	}
}

func (p *MemoryStore) New(id uuid.UUID, peer string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[id]; ok {
		return ErrSessionAlreadyExists
	}
	p.sessions[id] = Session{
		ID:      id,
		Peer:    peer,
		Started: time.Now(),
	}
	return nil
}

func (p *MemoryStore) Get(id uuid.UUID) (Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if sess, ok := p.sessions[id]; ok {
		return sess, nil
	}
	return Session{}, ErrSessionNotFound
}

func (p *MemoryStore) SetLength(id uuid.UUID, length uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Length = length
	sess.Position = 0
	p.sessions[id] = sess
	return nil
}

func (p *MemoryStore) Advance(id uuid.UUID, position uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if position > sess.Length {
		return errors.Wrapf(ErrPositionOutOfRange, "position %d, length %d", position, sess.Length)
	}
	sess.Position = position
	p.sessions[id] = sess
	return nil
}

func (p *MemoryStore) Clear(id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(p.sessions, id)
	return nil
}

// List returns every live session, oldest first.
func (p *MemoryStore) List() []Session {
	p.mu.RLock()
	out := make([]Session, 0, len(p.sessions))
	for _, sess := range p.sessions {
		out = append(out, sess)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}
