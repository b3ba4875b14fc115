package event

import "github.com/google/uuid"

// CommandType discriminator for command payloads
type CommandType int32

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeJoinPool
	CommandTypePayPremium
	CommandTypeUpdateRiskScore
	CommandTypeSubmitClaim
	CommandTypeCastVote
	CommandTypeProcessClaim
	CommandTypeDistributeSurplus
	CommandTypeSetOracle
	CommandTypeSetPoolActive
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTypeJoinPool:
		return "JoinPool"
	case CommandTypePayPremium:
		return "PayPremium"
	case CommandTypeUpdateRiskScore:
		return "UpdateRiskScore"
	case CommandTypeSubmitClaim:
		return "SubmitClaim"
	case CommandTypeCastVote:
		return "CastVote"
	case CommandTypeProcessClaim:
		return "ProcessClaim"
	case CommandTypeDistributeSurplus:
		return "DistributeSurplus"
	case CommandTypeSetOracle:
		return "SetOracle"
	case CommandTypeSetPoolActive:
		return "SetPoolActive"
	default:
		return "Unknown"
	}
}

// Source partitions for per-partition sequence validation
const (
	PartitionAPI    = "api"
	PartitionOracle = "oracle"
)

// Command is the interface all command payloads implement
type Command interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// CommandType returns the discriminator
	CommandType() CommandType

	// Actor returns the account the command executes as
	Actor() uuid.UUID

	// LogicalTime returns the command's logical timestamp in epoch
	// microseconds. This is the only clock the core sees.
	LogicalTime() int64

	// Partition returns the source partition for sequence validation
	Partition() string

	// SourceSequence returns the upstream ordering key within the partition
	SourceSequence() int64
}

// Meta carries the fields shared by every command. Embedded by each
// concrete command type.
type Meta struct {
	CommandID uuid.UUID `json:"command_id"`
	Account   uuid.UUID `json:"account"`
	Timestamp int64     `json:"timestamp"` // epoch microseconds, stamped at the edge
	Source    string    `json:"source"`
	Sequence  int64     `json:"sequence"`
}

func (m *Meta) IdempotencyKey() string { return m.CommandID.String() }
func (m *Meta) Actor() uuid.UUID       { return m.Account }
func (m *Meta) LogicalTime() int64     { return m.Timestamp }
func (m *Meta) Partition() string      { return m.Source }
func (m *Meta) SourceSequence() int64  { return m.Sequence }
