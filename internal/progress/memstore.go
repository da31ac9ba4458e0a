package progress

import (
	"context"
	"sync"

	"github.com/ebarkley/versewise/internal/mastery"
	"github.com/ebarkley/versewise/internal/patterns"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// textKey identifies one subject's history on one text.
type textKey struct {
	subject string
	text    string
}

// MemStore is a thread-safe, in-memory implementation of [Store].
// Suitable for single-process use and testing.
type MemStore struct {
	mu       sync.RWMutex
	records  map[textKey]map[int]mastery.Record
	patterns map[textKey][]patterns.Pattern
	sessions map[textKey][]SessionRecord
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		records:  make(map[textKey]map[int]mastery.Record),
		patterns: make(map[textKey][]patterns.Pattern),
		sessions: make(map[textKey][]SessionRecord),
	}
}

// LoadMastery implements [Store.LoadMastery].
func (m *MemStore) LoadMastery(ctx context.Context, subjectID, textID string) ([]mastery.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byIndex := m.records[textKey{subjectID, textID}]
	out := make([]mastery.Record, 0, len(byIndex))
	for _, rec := range byIndex {
		out = append(out, rec)
	}
	return out, nil
}

// SaveMastery implements [Store.SaveMastery].
func (m *MemStore) SaveMastery(ctx context.Context, recs []mastery.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range recs {
		k := textKey{rec.SubjectID, rec.TextID}
		byIndex, ok := m.records[k]
		if !ok {
			byIndex = make(map[int]mastery.Record)
			m.records[k] = byIndex
		}
		byIndex[rec.WordIndex] = rec
	}
	return nil
}

// LoadPatterns implements [Store.LoadPatterns].
func (m *MemStore) LoadPatterns(ctx context.Context, subjectID, textID string) ([]patterns.Pattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.patterns[textKey{subjectID, textID}]
	return append([]patterns.Pattern(nil), stored...), nil
}

// UpsertPatterns implements [Store.UpsertPatterns].
func (m *MemStore) UpsertPatterns(ctx context.Context, pats []patterns.Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byText := make(map[textKey][]patterns.Pattern)
	for _, p := range pats {
		k := textKey{p.SubjectID, p.TextID}
		byText[k] = append(byText[k], p)
	}
	for k, detected := range byText {
		m.patterns[k] = patterns.Merge(m.patterns[k], detected)
	}
	return nil
}

// AppendSession implements [Store.AppendSession].
func (m *MemStore) AppendSession(ctx context.Context, rec SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := textKey{rec.SubjectID, rec.TextID}
	m.sessions[k] = append(m.sessions[k], rec)
	return nil
}

// TextProgress implements [Store.TextProgress].
func (m *MemStore) TextProgress(ctx context.Context, subjectID, textID string) (TextProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := textKey{subjectID, textID}
	byIndex := m.records[k]
	recs := make([]mastery.Record, 0, len(byIndex))
	for _, rec := range byIndex {
		recs = append(recs, rec)
	}
	return aggregate(subjectID, textID, recs, m.sessions[k])
}

// Ping implements [Store.Ping].
func (m *MemStore) Ping(ctx context.Context) error {
	return nil
}
