package rules

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/crewradar/internal/kv"
)

const configKey = "CONFIG_RULES"

// Store persists the rule list under a single key.
type Store struct {
	kv kv.Store
}

// NewStore creates a Store.
func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

// List returns all rules. Missing or unreadable content reads as no rules.
func (s *Store) List(ctx context.Context) ([]Rule, error) {
	var rs []Rule
	found, err := kv.GetJSON(ctx, s.kv, configKey, &rs)
	if err != nil {
		if found {
			log.Printf("rules: stored rules unreadable, treating as empty: %v", err)
			return []Rule{}, nil
		}
		return nil, fmt.Errorf("rules: list: %w", err)
	}
	if rs == nil {
		rs = []Rule{}
	}
	return rs, nil
}

// Find returns the rule for a project and request type.
func (s *Store) Find(ctx context.Context, projectID, requestTypeID string) (Rule, bool, error) {
	rs, err := s.List(ctx)
	if err != nil {
		return Rule{}, false, err
	}
	r, ok := Match(rs, projectID, requestTypeID)
	return r, ok, nil
}

// Save replaces the whole rule set after normalizing and validating it.
func (s *Store) Save(ctx context.Context, rs []Rule) ([]Rule, error) {
	out := make([]Rule, len(rs))
	for i, r := range rs {
		out[i] = normalize(r)
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	if err := kv.SetJSON(ctx, s.kv, configKey, out); err != nil {
		return nil, fmt.Errorf("rules: save: %w", err)
	}
	return out, nil
}

// Put inserts r, or replaces the rule with the same id. An empty id gets a
// new one.
func (s *Store) Put(ctx context.Context, r Rule) (Rule, error) {
	rs, err := s.List(ctx)
	if err != nil {
		return Rule{}, err
	}
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	replaced := false
	for i := range rs {
		if rs[i].ID == r.ID {
			rs[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		rs = append(rs, r)
	}
	saved, err := s.Save(ctx, rs)
	if err != nil {
		return Rule{}, err
	}
	for _, sr := range saved {
		if sr.ID == r.ID {
			return sr, nil
		}
	}
	return Rule{}, fmt.Errorf("rules: put %s: not saved", r.ID)
}

// Delete removes the rule with id. Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	rs, err := s.List(ctx)
	if err != nil {
		return err
	}
	kept := rs[:0]
	for _, r := range rs {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	_, err = s.Save(ctx, kept)
	return err
}
