// Package store provides in-memory implementations of the activity
// storage interfaces (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/presence-engine/activity"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements activity.EventStore, activity.LivenessStore and
// activity.SubjectStore in process memory.
type Memory struct {
	mu       sync.RWMutex
	events   map[string][]activity.StatusEvent
	liveness map[string]activity.LivenessRecord
	subjects map[string]activity.Subject
	nextSeq  int64
}

func NewMemory() *Memory {
	return &Memory{
		events:   make(map[string][]activity.StatusEvent),
		liveness: make(map[string]activity.LivenessRecord),
		subjects: make(map[string]activity.Subject),
	}
}

// AppendEvent adds a single event. Append-only.
func (m *Memory) AppendEvent(_ context.Context, ev activity.StatusEvent) (activity.StatusEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq++
	ev.Seq = m.nextSeq

	evs := m.events[ev.SubjectID]

	// Binary search for insertion point so reads never need to re-sort.
	i := sort.Search(len(evs), func(i int) bool {
		return ev.Before(evs[i])
	})
	evs = append(evs, activity.StatusEvent{})
	copy(evs[i+1:], evs[i:])
	evs[i] = ev
	m.events[ev.SubjectID] = evs

	return ev, nil
}

// LoadRange returns events with At in [from, to), ordered by (At, Seq).
func (m *Memory) LoadRange(_ context.Context, subjectID string, from, to time.Time) ([]activity.StatusEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []activity.StatusEvent
	for _, ev := range m.events[subjectID] {
		if ev.At.Before(from) || !ev.At.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Touch overwrites the subject's liveness record. Last writer wins.
func (m *Memory) Touch(_ context.Context, subjectID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liveness[subjectID] = activity.LivenessRecord{SubjectID: subjectID, LastSeen: at}
	return nil
}

func (m *Memory) LastSeen(_ context.Context, subjectID string) (activity.LivenessRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.liveness[subjectID]
	return rec, ok, nil
}

func (m *Memory) CreateSubject(_ context.Context, s activity.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects[s.ID] = s
	return nil
}

func (m *Memory) GetSubject(_ context.Context, id string) (*activity.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.subjects[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) GetSubjectByKey(_ context.Context, activationKey string) (*activity.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subjects {
		if s.ActivationKey == activationKey {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListSubjects(_ context.Context, department string) ([]activity.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]activity.Subject, 0, len(m.subjects))
	for _, s := range m.subjects {
		if department != "" && s.Department != department {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteSubject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subjects, id)
	return nil
}

func (m *Memory) CountByAccount(_ context.Context, accountID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, s := range m.subjects {
		if s.AccountID == accountID {
			n++
		}
	}
	return n, nil
}
