package projection

import (
	"sync"

	"github.com/google/uuid"
)

// ClaimHistoryEntry records one claim settlement
type ClaimHistoryEntry struct {
	ClaimID   int64     `json:"claim_id"`
	Initiator uuid.UUID `json:"initiator"`
	Status    string    `json:"status"`
	Payout    int64     `json:"payout"`
	Sequence  int64     `json:"sequence"`
	Timestamp int64     `json:"timestamp"`
}

// ClaimHistoryProjection keeps recent settlements in memory for the
// read API's recent-settlements endpoint. The durable history lives in
// projections.claims; this is a hot view, bounded by maxEntries.
type ClaimHistoryProjection struct {
	mu         sync.RWMutex
	entries    []ClaimHistoryEntry
	maxEntries int
}

func NewClaimHistoryProjection() *ClaimHistoryProjection {
	return &ClaimHistoryProjection{
		entries:    make([]ClaimHistoryEntry, 0),
		maxEntries: 1000,
	}
}

// AddEntry records a settlement, evicting the oldest past the cap
func (p *ClaimHistoryProjection) AddEntry(entry ClaimHistoryEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = append(p.entries, entry)
	if len(p.entries) > p.maxEntries {
		p.entries = p.entries[len(p.entries)-p.maxEntries:]
	}
}

// Recent returns the most recent settlements, newest first
func (p *ClaimHistoryProjection) Recent(limit int) []ClaimHistoryEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ClaimHistoryEntry, 0, limit)
	for i := len(p.entries) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, p.entries[i])
	}
	return result
}
