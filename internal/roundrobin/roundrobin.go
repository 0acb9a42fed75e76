// Package roundrobin picks the next agent from an ordered candidate list
// using a cursor persisted per rule or per exception list.
//
// The cursor resets to the front whenever the previously chosen agent is no
// longer in the list. Cursor reads and writes are serialized per key inside
// one process; separate processes sharing a store can still race, which may
// repeat or skip one rotation step.
package roundrobin

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/zulandar/crewradar/internal/kv"
)

const (
	ruleKeyPrefix      = "LAST_ASSIGNED_"
	exceptionKeyPrefix = "EXC_LAST_ASSIGNED_"
)

// ErrNoCandidates is returned when Select is given an empty list.
var ErrNoCandidates = errors.New("roundrobin: no candidates")

// RuleKey is the cursor key for a rule's normal pool.
func RuleKey(ruleID string) string { return ruleKeyPrefix + ruleID }

// ExceptionKey is the cursor key for a rule's exception assignee list.
func ExceptionKey(ruleID string) string { return exceptionKeyPrefix + ruleID }

// NextIndex returns the index to pick after last: the element following last,
// or 0 when last is empty, missing from ordered, or the final element.
func NextIndex(ordered []string, last string) int {
	if last == "" {
		return 0
	}
	for i, id := range ordered {
		if id == last {
			if i < len(ordered)-1 {
				return i + 1
			}
			return 0
		}
	}
	return 0
}

// Selector advances persisted cursors.
type Selector struct {
	cursors kv.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSelector creates a Selector over the cursor store.
func NewSelector(cursors kv.Store) *Selector {
	return &Selector{cursors: cursors, locks: make(map[string]*sync.Mutex)}
}

// Select picks the next id from ordered after the one stored under key and
// stores the pick. The pick is stored before the caller acts on it, so a
// later failure to use it still consumes the rotation slot. An unreadable or
// unwritable cursor is logged and does not prevent a pick.
func (s *Selector) Select(ctx context.Context, key string, ordered []string) (string, error) {
	if len(ordered) == 0 {
		return "", ErrNoCandidates
	}

	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	last, _, err := s.cursors.Get(ctx, key)
	if err != nil {
		log.Printf("roundrobin: read cursor %s: %v (starting from front)", key, err)
		last = ""
	}

	winner := ordered[NextIndex(ordered, last)]
	if err := s.cursors.Set(ctx, key, winner); err != nil {
		log.Printf("roundrobin: write cursor %s=%s: %v", key, winner, err)
	}
	return winner, nil
}

// Last returns the id stored under key, if any.
func (s *Selector) Last(ctx context.Context, key string) (string, bool, error) {
	return s.cursors.Get(ctx, key)
}

func (s *Selector) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}
