package observability

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// JournalEntryType categorizes journal entries.
type JournalEntryType string

const (
	EntryRender   JournalEntryType = "RENDER"
	EntryDownload JournalEntryType = "DOWNLOAD"
	EntryReclaim  JournalEntryType = "RECLAIM"
	EntryRejected JournalEntryType = "REJECTED"
)

// JournalEntry is a single auditable event in the life of the service:
// a report rendered, an artifact downloaded, a sweep of the store, a
// request turned away.
type JournalEntry struct {
	EntryID     string           `json:"entry_id"`
	EntryType   JournalEntryType `json:"entry_type"`
	Digest      string           `json:"digest,omitempty"`
	Token       string           `json:"token,omitempty"` // prefix only
	RequestID   string           `json:"request_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Summary     string           `json:"summary"`
	ContentHash string           `json:"content_hash"`
	Details     map[string]any   `json:"details,omitempty"`
}

// JournalQuery filters journal entries.
type JournalQuery struct {
	Digest    string            `json:"digest,omitempty"`
	EntryType *JournalEntryType `json:"entry_type,omitempty"`
	After     *time.Time        `json:"after,omitempty"`
	Before    *time.Time        `json:"before,omitempty"`
	Limit     int               `json:"limit,omitempty"`
}

// Journal collects and queries render activity. It is bounded: once
// maxEntries is reached the oldest half is dropped, so a long-running
// service never grows without limit.
type Journal struct {
	mu         sync.RWMutex
	entries    []JournalEntry
	index      map[string][]int // digest → entry indices
	seq        int64
	maxEntries int
	clock      func() time.Time
}

const defaultJournalCap = 4096

// NewJournal creates a new journal.
func NewJournal() *Journal {
	return &Journal{
		entries:    make([]JournalEntry, 0),
		index:      make(map[string][]int),
		maxEntries: defaultJournalCap,
		clock:      time.Now,
	}
}

// WithClock overrides the clock for testing.
func (j *Journal) WithClock(clock func() time.Time) *Journal {
	j.clock = clock
	return j
}

// WithCapacity overrides the entry bound.
func (j *Journal) WithCapacity(n int) *Journal {
	if n > 0 {
		j.maxEntries = n
	}
	return j
}

// Record adds an entry to the journal.
func (j *Journal) Record(entry JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	if entry.EntryID == "" {
		entry.EntryID = fmt.Sprintf("jr-%d", j.seq)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = j.clock()
	}

	data, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	h := sha256.Sum256(data)
	entry.ContentHash = "sha256:" + hex.EncodeToString(h[:])

	if len(j.entries) >= j.maxEntries {
		j.compact()
	}

	idx := len(j.entries)
	j.entries = append(j.entries, entry)
	if entry.Digest != "" {
		j.index[entry.Digest] = append(j.index[entry.Digest], idx)
	}

	return nil
}

// compact drops the oldest half of the journal and rebuilds the index.
// Caller holds the lock.
func (j *Journal) compact() {
	keep := j.entries[len(j.entries)/2:]
	j.entries = make([]JournalEntry, len(keep))
	copy(j.entries, keep)
	j.index = make(map[string][]int)
	for i, e := range j.entries {
		if e.Digest != "" {
			j.index[e.Digest] = append(j.index[e.Digest], i)
		}
	}
}

// Query retrieves entries matching the query, oldest first.
func (j *Journal) Query(q JournalQuery) []JournalEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var candidates []JournalEntry
	if q.Digest != "" {
		indices, ok := j.index[q.Digest]
		if !ok {
			return nil
		}
		for _, i := range indices {
			candidates = append(candidates, j.entries[i])
		}
	} else {
		candidates = make([]JournalEntry, len(j.entries))
		copy(candidates, j.entries)
	}

	var results []JournalEntry
	for _, e := range candidates {
		if q.EntryType != nil && e.EntryType != *q.EntryType {
			continue
		}
		if q.After != nil && e.Timestamp.Before(*q.After) {
			continue
		}
		if q.Before != nil && e.Timestamp.After(*q.Before) {
			continue
		}
		results = append(results, e)
	}

	sort.Slice(results, func(i, k int) bool {
		return results[i].Timestamp.Before(results[k].Timestamp)
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[len(results)-q.Limit:]
	}

	return results
}

// Count returns total entries.
func (j *Journal) Count() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}
