package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeMember AccountScope = iota
	AccountScopePool
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Member sub-types. External is the boundary account for money that
	// entered or left the pool on the member's behalf; it is the only
	// account allowed to go negative.
	SubTypeMemberExternal AccountSubType = iota

	// Pool sub-types
	SubTypePoolTreasury
)

// AccountKey is the in-memory key for balance tracking (18 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // member UUID; zero for pool accounts
	SubType  AccountSubType
}

// NewMemberExternalKey creates the boundary key for a member account
func NewMemberExternalKey(memberID uuid.UUID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeMember,
		EntityID: memberID,
		SubType:  SubTypeMemberExternal,
	}
}

// TreasuryKey is the single shared pool treasury account
func TreasuryKey() AccountKey {
	return AccountKey{
		Scope:   AccountScopePool,
		SubType: SubTypePoolTreasury,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopeMember:
		uid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("member:%s:%s", uid.String(), k.subTypeName())
	case AccountScopePool:
		return fmt.Sprintf("pool:%s", k.subTypeName())
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeMemberExternal:
		return "external"
	case SubTypePoolTreasury:
		return "treasury"
	default:
		return "unknown"
	}
}

// ParseAccountPath inverts AccountPath. Used when rebuilding balances from
// persisted journal rows.
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")
	switch {
	case len(parts) == 2 && parts[0] == "pool":
		if parts[1] != "treasury" {
			return AccountKey{}, fmt.Errorf("unknown pool account %q", path)
		}
		return TreasuryKey(), nil
	case len(parts) == 3 && parts[0] == "member":
		uid, err := uuid.Parse(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("bad member id in %q: %w", path, err)
		}
		if parts[2] != "external" {
			return AccountKey{}, fmt.Errorf("unknown member account %q", path)
		}
		return NewMemberExternalKey(uid), nil
	}
	return AccountKey{}, fmt.Errorf("unparseable account path %q", path)
}
