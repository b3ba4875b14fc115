package core

import (
	"fmt"
)

// SequenceValidator validates source sequences per partition.
// Not thread-safe — only accessed from the single-threaded deterministic core.
//
// Both partitions ("api", "oracle") are gap-tolerant: edges may drop or
// retry commands, so a jump forward is recorded but accepted. A stale
// sequence is rejected unless the command is a known duplicate.
type SequenceValidator struct {
	lastSeen map[string]int64 // partition -> highest sequence accepted
	metrics  *SequenceMetrics
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		lastSeen: make(map[string]int64),
		metrics:  NewSequenceMetrics(),
	}
}

// ValidateSequence checks source sequence ordering for a partition.
func (sv *SequenceValidator) ValidateSequence(
	partition string,
	sourceSequence int64,
	idempotencyKey string,
	isDuplicate bool,
) error {
	last, seen := sv.lastSeen[partition]

	if seen && sourceSequence <= last {
		// Stale delivery
		if isDuplicate {
			// Already processed - expected on redelivery
			return nil
		}
		sv.metrics.RecordOutOfOrder(partition)
		return fmt.Errorf("stale command: partition=%s, last=%d, got=%d",
			partition, last, sourceSequence)
	}

	if seen && sourceSequence > last+1 {
		// Gap detected - accept but record
		sv.metrics.RecordGap(partition, last+1, sourceSequence)
	}

	sv.lastSeen[partition] = sourceSequence
	return nil
}

// GetLastSequence returns the highest sequence accepted for a partition.
func (sv *SequenceValidator) GetLastSequence(partition string) int64 {
	return sv.lastSeen[partition]
}

// SetLastSequence initializes partition state (used during recovery)
func (sv *SequenceValidator) SetLastSequence(partition string, seq int64) {
	sv.lastSeen[partition] = seq
}

// Partitions returns all partitions with recorded state.
func (sv *SequenceValidator) Partitions() map[string]int64 {
	out := make(map[string]int64, len(sv.lastSeen))
	for k, v := range sv.lastSeen {
		out[k] = v
	}
	return out
}

// --- Metrics ---

// SequenceMetrics tracks sequence validation stats.
// Not thread-safe — only accessed from the single-threaded deterministic core.
type SequenceMetrics struct {
	gaps       map[string]int64 // partition -> gap count
	outOfOrder map[string]int64 // partition -> stale rejection count
}

func NewSequenceMetrics() *SequenceMetrics {
	return &SequenceMetrics{
		gaps:       make(map[string]int64),
		outOfOrder: make(map[string]int64),
	}
}

func (m *SequenceMetrics) RecordGap(partition string, expected, got int64) {
	m.gaps[partition]++
}

func (m *SequenceMetrics) RecordOutOfOrder(partition string) {
	m.outOfOrder[partition]++
}

func (m *SequenceMetrics) GetGaps(partition string) int64 {
	return m.gaps[partition]
}

func (m *SequenceMetrics) GetOutOfOrder(partition string) int64 {
	return m.outOfOrder[partition]
}
