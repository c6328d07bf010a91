package store

import (
	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/envelope"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Store is the replicated fact store.
type Store struct {
	mu deadlock.RWMutex

	facts    map[string]*Fact    // dedup key -> fact
	byID     map[string]string   // envelope id -> dedup key
	votes    map[string]int      // post id -> distinct voters
	comments map[string][]string // post id -> comment dedup keys

	timeProvider crypto.TimeProvider
}

// New creates an empty store.
func New() *Store {
	return NewWithTimeProvider(nil)
}

// NewWithTimeProvider creates an empty store with a custom clock.
func NewWithTimeProvider(tp crypto.TimeProvider) *Store {
	if tp == nil {
		tp = crypto.DefaultTimeProvider{}
	}
	return &Store{
		facts:        make(map[string]*Fact),
		byID:         make(map[string]string),
		votes:        make(map[string]int),
		comments:     make(map[string][]string),
		timeProvider: tp,
	}
}

// Insert stores f if its dedup key is new. It returns true iff f was accepted.
// A repeat is a silent no-op.
func (s *Store) Insert(f *Fact) bool {
	if !envelope.IsValidID(f.ID) {
		return false
	}
	key := f.DedupKey()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.facts[key]; seen {
		logrus.WithFields(logrus.Fields{
			"function": "Insert",
			"kind":     f.Kind,
			"key":      key,
		}).Debug("Ignoring duplicate fact")
		return false
	}
	if _, seen := s.byID[f.ID]; seen {
		return false
	}

	stored := *f
	stored.ReceivedAt = s.timeProvider.Now()
	s.facts[key] = &stored
	s.byID[f.ID] = key

	switch f.Kind {
	case KindVote:
		s.votes[f.PostID]++
	case KindComment:
		s.comments[f.PostID] = append(s.comments[f.PostID], key)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Insert",
		"kind":     f.Kind,
		"id":       f.ID,
		"from":     crypto.HexPrefix(f.From),
	}).Debug("Accepted fact")
	return true
}

// Has reports whether a fact with the given dedup key is stored.
func (s *Store) Has(dedupKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.facts[dedupKey]
	return ok
}

// HasID reports whether a fact with the given envelope id is stored.
func (s *Store) HasID(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// Get returns a copy of the fact with the given envelope id.
func (s *Store) Get(id string) (Fact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.byID[id]
	if !ok {
		return Fact{}, false
	}
	return *s.facts[key], true
}

// Len returns the number of stored facts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}

// VoteCount returns the number of distinct voters on postID.
func (s *Store) VoteCount(postID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.votes[postID]
}

// Comments returns the comments on postID, oldest first. The post itself
// need not be present.
func (s *Store) Comments(postID string) []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.comments[postID]
	out := make([]Fact, 0, len(keys))
	for _, key := range keys {
		out = append(out, *s.facts[key])
	}
	slices.SortFunc(out, func(a, b Fact) bool {
		if a.TS != b.TS {
			return a.TS < b.TS
		}
		return a.ID < b.ID
	})
	return out
}

// MarkRead flags the fact with the given envelope id as read.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byID[id]
	if !ok {
		return false
	}
	s.facts[key].Read = true
	return true
}

// KnownIDs returns the envelope ids of all stored broadcast facts, sorted.
func (s *Store) KnownIDs(channel string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byID))
	for _, id := range maps.Keys(s.byID) {
		f := s.facts[s.byID[id]]
		if f.Kind.IsBroadcast() && (channel == "" || f.Channel == channel) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Missing returns the signed envelopes of broadcast facts on channel whose
// ids are not in have, oldest first so posts precede their replies.
func (s *Store) Missing(channel string, have []string) []*envelope.Envelope {
	known := make(map[string]struct{}, len(have))
	for _, id := range have {
		known[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []*Fact
	for _, f := range s.facts {
		if !f.Kind.IsBroadcast() || f.Envelope == nil {
			continue
		}
		if channel != "" && f.Channel != channel {
			continue
		}
		if _, ok := known[f.ID]; ok {
			continue
		}
		missing = append(missing, f)
	}
	slices.SortFunc(missing, func(a, b *Fact) bool {
		if a.TS != b.TS {
			return a.TS < b.TS
		}
		return a.ID < b.ID
	})

	out := make([]*envelope.Envelope, len(missing))
	for i, f := range missing {
		out[i] = f.Envelope
	}
	return out
}
