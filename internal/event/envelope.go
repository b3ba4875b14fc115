package event

// Envelope wraps every applied command in the event log. Envelopes are
// written in sequence order and chained by state hash, so the log is both a
// replayable journal and a tamper-evident history.
type Envelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Command type discriminator
	CommandType CommandType

	// Source partition the command arrived on
	Partition string

	// Logical command timestamp in epoch microseconds (NOT wall-clock)
	Timestamp int64

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded command; round-trips through the parser for replay
	Payload []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous envelope's state hash (chain integrity)
	PrevHash [32]byte
}
