package statesync

import (
	"sync"

	"github.com/roscoeevans/Skulking/go/internal/models"
)

// Store holds the freshest known snapshots. Each snapshot kind is gated on
// its own version: a result older than the one held is dropped.
type Store struct {
	mu sync.RWMutex

	private        models.PrivateViewState
	privateVersion int64
	public         models.PublicGameState
	publicVersion  int64
}

// NewStore returns an empty store. Nothing has been seen yet, so any
// version is accepted.
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// ApplyPrivate replaces the private view when v is at least as new as the
// one held and reports whether it did.
func (s *Store) ApplyPrivate(v models.PrivateViewState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Version < s.privateVersion {
		return false
	}
	s.private = v
	s.privateVersion = v.Version
	return true
}

// ApplyPublic is ApplyPrivate for the public state.
func (s *Store) ApplyPublic(p models.PublicGameState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Version < s.publicVersion {
		return false
	}
	s.public = p
	s.publicVersion = p.Version
	return true
}

// Private returns the held private view and whether one has been applied.
func (s *Store) Private() (models.PrivateViewState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.private, s.privateVersion >= 0
}

func (s *Store) Public() (models.PublicGameState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.public, s.publicVersion >= 0
}

// LastSeen is the newest version applied from either fetch, or -1.
func (s *Store) LastSeen() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return max(s.privateVersion, s.publicVersion)
}

// PrivateVersion is the version of the held private view, or -1.
func (s *Store) PrivateVersion() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.privateVersion
}

func (s *Store) PublicVersion() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publicVersion
}

// Reset forgets everything, e.g. when the participant identity changes.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.private = models.PrivateViewState{}
	s.public = models.PublicGameState{}
	s.privateVersion = -1
	s.publicVersion = -1
}
