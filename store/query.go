package store

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Direction selects notes by whether they were sent or received.
type Direction uint8

const (
	DirectionAny Direction = iota
	DirectionInbox
	DirectionSent
)

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	Kind    Kind
	Channel string
	PostID  string
	From    string
	// Peer matches facts sent by or addressed to the given key.
	Peer      string
	Direction Direction
	Unread    bool
	// Since excludes facts with a timestamp before it (milliseconds).
	Since int64
	Limit int
}

func (f Filter) matches(fact *Fact) bool {
	switch {
	case f.Kind != "" && fact.Kind != f.Kind:
		return false
	case f.Channel != "" && fact.Channel != f.Channel:
		return false
	case f.PostID != "" && fact.PostID != f.PostID:
		return false
	case f.From != "" && fact.From != f.From:
		return false
	case f.Peer != "" && fact.From != f.Peer && fact.To != f.Peer:
		return false
	case f.Direction == DirectionInbox && fact.Outgoing:
		return false
	case f.Direction == DirectionSent && !fact.Outgoing:
		return false
	case f.Unread && fact.Read:
		return false
	case fact.TS < f.Since:
		return false
	}
	return true
}

// Query returns copies of the matching facts, newest first.
func (s *Store) Query(filter Filter) []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Fact, 0)
	for _, fact := range maps.Values(s.facts) {
		if filter.matches(fact) {
			out = append(out, *fact)
		}
	}

	slices.SortFunc(out, func(a, b Fact) bool {
		if a.TS != b.TS {
			return a.TS > b.TS
		}
		return a.ID < b.ID
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}
