package presence

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/zulandar/crewradar/internal/kv"
)

const (
	userKeyPrefix = "USER_"
	syncKeyPrefix = "MS_TEAMS_SYNC_"
)

// DefaultOnlineWindow is how recent a heartbeat must be for an agent to
// count as online.
const DefaultOnlineWindow = 10 * time.Minute

// Detail is the last directory presence folded into a Record, kept for display.
type Detail struct {
	DirectoryUserID string  `json:"msUserId"`
	Availability    string  `json:"availability"`
	Activity        string  `json:"activity"`
	SequenceNumber  string  `json:"sequenceNumber,omitempty"`
	WorkLocation    *string `json:"workLocation"`
	IsOutOfOffice   bool    `json:"isOutOfOffice"`
	MappedStatus    Status  `json:"mappedStatus"`
}

// NewDetail builds the display record for a signal resolved to directoryUserID.
func NewDetail(directoryUserID string, sig Signal) Detail {
	d := Detail{
		DirectoryUserID: directoryUserID,
		Availability:    sig.Availability,
		Activity:        sig.Activity,
		SequenceNumber:  sig.Sequence,
		IsOutOfOffice:   sig.OutOfOffice,
		MappedStatus:    Map(sig.Availability, sig.Activity),
	}
	if sig.WorkLocation != "" {
		loc := sig.WorkLocation
		d.WorkLocation = &loc
	}
	return d
}

// Record is an agent's stored presence.
type Record struct {
	Status        Status     `json:"status"`
	LastHeartbeat *time.Time `json:"lastHeartbeat,omitempty"`
	LastPresence  *Detail    `json:"lastPresence,omitempty"`
}

// Online reports whether the last heartbeat falls within window of now.
func (r Record) Online(now time.Time, window time.Duration) bool {
	if r.LastHeartbeat == nil {
		return false
	}
	return now.Sub(*r.LastHeartbeat) <= window
}

// MinutesSince returns whole minutes since the last heartbeat, rounded, or
// nil when the agent never sent one.
func (r Record) MinutesSince(now time.Time) *int {
	if r.LastHeartbeat == nil {
		return nil
	}
	m := int(math.Round(now.Sub(*r.LastHeartbeat).Minutes()))
	return &m
}

// Store reads and writes presence records in the key-value store. Every read
// tolerates absent or malformed entries and falls back to Available.
type Store struct {
	kv  kv.Store
	now func() time.Time
}

// NewStore creates a Store. A nil now uses time.Now.
func NewStore(s kv.Store, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{kv: s, now: now}
}

// Get returns the agent's record. The error is informational: the returned
// record is always usable.
func (s *Store) Get(ctx context.Context, accountID string) (Record, error) {
	var rec Record
	found, err := kv.GetJSON(ctx, s.kv, userKeyPrefix+accountID, &rec)
	if err != nil {
		if found {
			log.Printf("presence: %s has malformed record, using defaults: %v", accountID, err)
			err = nil
		}
		rec = Record{}
	}
	rec.Status = rec.Status.OrDefault()
	return rec, err
}

// load reads the record before a write. A failed read is returned so the
// caller does not overwrite what is stored with defaults.
func (s *Store) load(ctx context.Context, accountID string) (Record, error) {
	rec, err := s.Get(ctx, accountID)
	if err != nil {
		return Record{}, fmt.Errorf("presence: load %s: %w", accountID, err)
	}
	return rec, nil
}

// Touch refreshes the heartbeat without touching status.
func (s *Store) Touch(ctx context.Context, accountID string) (Record, error) {
	if accountID == "" {
		return Record{}, fmt.Errorf("presence: accountID is required")
	}
	rec, err := s.load(ctx, accountID)
	if err != nil {
		return Record{}, err
	}
	now := s.now().UTC()
	rec.LastHeartbeat = &now
	return rec, s.put(ctx, accountID, rec)
}

// SetStatus records a manual status change and refreshes the heartbeat.
func (s *Store) SetStatus(ctx context.Context, accountID string, status Status) (Record, error) {
	if accountID == "" {
		return Record{}, fmt.Errorf("presence: accountID is required")
	}
	st, ok := ParseStatus(string(status))
	if !ok {
		return Record{}, fmt.Errorf("presence: unknown status %q", status)
	}
	rec, err := s.load(ctx, accountID)
	if err != nil {
		return Record{}, err
	}
	now := s.now().UTC()
	rec.Status = st
	rec.LastHeartbeat = &now
	return rec, s.put(ctx, accountID, rec)
}

// ApplyPresence stores a directory-derived status and its detail, refreshing
// the heartbeat.
func (s *Store) ApplyPresence(ctx context.Context, accountID string, d Detail) (Record, error) {
	if accountID == "" {
		return Record{}, fmt.Errorf("presence: accountID is required")
	}
	rec, err := s.load(ctx, accountID)
	if err != nil {
		return Record{}, err
	}
	now := s.now().UTC()
	rec.Status = d.MappedStatus.OrDefault()
	rec.LastHeartbeat = &now
	rec.LastPresence = &d
	return rec, s.put(ctx, accountID, rec)
}

func (s *Store) put(ctx context.Context, accountID string, rec Record) error {
	if err := kv.SetJSON(ctx, s.kv, userKeyPrefix+accountID, rec); err != nil {
		return fmt.Errorf("presence: save %s: %w", accountID, err)
	}
	return nil
}

type syncFlag struct {
	SyncFromTeams bool `json:"syncFromTeams"`
}

// SyncEnabled reports whether the agent opted into directory presence sync.
// Missing or unreadable flags count as disabled.
func (s *Store) SyncEnabled(ctx context.Context, accountID string) bool {
	var f syncFlag
	if _, err := kv.GetJSON(ctx, s.kv, syncKeyPrefix+accountID, &f); err != nil {
		log.Printf("presence: read sync flag for %s: %v", accountID, err)
		return false
	}
	return f.SyncFromTeams
}

// SetSync stores the agent's directory sync preference.
func (s *Store) SetSync(ctx context.Context, accountID string, enabled bool) error {
	if accountID == "" {
		return fmt.Errorf("presence: accountID is required")
	}
	if err := kv.SetJSON(ctx, s.kv, syncKeyPrefix+accountID, syncFlag{SyncFromTeams: enabled}); err != nil {
		return fmt.Errorf("presence: save sync flag %s: %w", accountID, err)
	}
	return nil
}
