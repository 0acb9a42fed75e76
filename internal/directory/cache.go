package directory

import (
	"context"
	"log"
	"strings"

	"github.com/zulandar/crewradar/internal/kv"
	"github.com/zulandar/crewradar/internal/presence"
)

const (
	emailCachePrefix = "MS_TEAMS_USERMAP_"
	nameCachePrefix  = "MS_TEAMS_USERMAP_DISPLAYNAME_LIST_"
)

// Source is the uncached lookup surface wrapped by Cached.
type Source interface {
	UserIDByEmail(ctx context.Context, email string) (string, error)
	UsersByDisplayName(ctx context.Context, name string) ([]User, error)
	Presence(ctx context.Context, userID string) (presence.Signal, error)
}

// Cached remembers identity lookups in the key-value store. Presence is
// never cached. Only successful, non-empty lookups are stored.
type Cached struct {
	src Source
	kv  kv.Store
}

// NewCached wraps src with a lookup cache.
func NewCached(src Source, store kv.Store) *Cached {
	return &Cached{src: src, kv: store}
}

type emailEntry struct {
	UserID string `json:"msUserId"`
}

type nameEntry struct {
	Users []User `json:"users"`
}

// UserIDByEmail returns a cached id or looks it up.
func (c *Cached) UserIDByEmail(ctx context.Context, email string) (string, error) {
	key := emailCachePrefix + strings.ToLower(email)
	var e emailEntry
	if _, err := kv.GetJSON(ctx, c.kv, key, &e); err == nil && e.UserID != "" {
		return e.UserID, nil
	}
	id, err := c.src.UserIDByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if err := kv.SetJSON(ctx, c.kv, key, emailEntry{UserID: id}); err != nil {
		log.Printf("directory: cache email %s: %v", email, err)
	}
	return id, nil
}

// UsersByDisplayName returns cached matches or searches.
func (c *Cached) UsersByDisplayName(ctx context.Context, name string) ([]User, error) {
	key := nameCachePrefix + strings.ToLower(name)
	var e nameEntry
	if _, err := kv.GetJSON(ctx, c.kv, key, &e); err == nil && len(e.Users) > 0 {
		return e.Users, nil
	}
	users, err := c.src.UsersByDisplayName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(users) > 0 {
		if err := kv.SetJSON(ctx, c.kv, key, nameEntry{Users: users}); err != nil {
			log.Printf("directory: cache display name %s: %v", name, err)
		}
	}
	return users, nil
}

// Presence is passed through uncached.
func (c *Cached) Presence(ctx context.Context, userID string) (presence.Signal, error) {
	return c.src.Presence(ctx, userID)
}
