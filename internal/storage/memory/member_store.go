package memory

import (
	"context"
	"sync"

	"github.com/cristian081496/ontario-directory-scraper/internal/member"
)

// MemberStore keeps saved records grouped by run ID.
type MemberStore struct {
	mu   sync.RWMutex
	runs map[string][]member.Record
	err  error
}

// NewMemberStore constructs a MemberStore.
func NewMemberStore() *MemberStore {
	return &MemberStore{runs: make(map[string][]member.Record)}
}

// Fail makes subsequent saves return err.
func (s *MemberStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SaveMembers stores a copy of records under runID, replacing earlier saves.
func (s *MemberStore) SaveMembers(_ context.Context, runID string, records []member.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.runs[runID] = append([]member.Record(nil), records...)
	return nil
}

// Members returns the records saved for runID.
func (s *MemberStore) Members(runID string) []member.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]member.Record(nil), s.runs[runID]...)
}
