package state

import (
	"github.com/google/uuid"

	"PoolLedger/internal/pool"
)

// Registry holds pool-level administrative state: the owner account, the
// single registered oracle, and the active flag gating new joins.
type Registry struct {
	owner      uuid.UUID
	oracle     uuid.UUID
	hasOracle  bool
	poolActive bool
	version    int64
}

func NewRegistry(owner uuid.UUID) *Registry {
	return &Registry{
		owner:      owner,
		poolActive: true,
	}
}

// Owner returns the administrator account fixed at genesis
func (r *Registry) Owner() uuid.UUID {
	return r.owner
}

// IsOwner reports whether the account is the administrator
func (r *Registry) IsOwner(account uuid.UUID) bool {
	return account == r.owner
}

// SetOracle registers the oracle account. Only one oracle is registered at
// a time; a new registration replaces the previous one.
func (r *Registry) SetOracle(caller, oracle uuid.UUID) error {
	if !r.IsOwner(caller) {
		return pool.ErrNotAuthorized
	}
	r.oracle = oracle
	r.hasOracle = true
	r.version++
	return nil
}

// IsOracle reports whether the account is the registered oracle
func (r *Registry) IsOracle(account uuid.UUID) bool {
	return r.hasOracle && account == r.oracle
}

// Oracle returns the registered oracle account, if any
func (r *Registry) Oracle() (uuid.UUID, bool) {
	return r.oracle, r.hasOracle
}

// SetPoolActive toggles whether new members may join
func (r *Registry) SetPoolActive(caller uuid.UUID, active bool) error {
	if !r.IsOwner(caller) {
		return pool.ErrNotAuthorized
	}
	r.poolActive = active
	r.version++
	return nil
}

// PoolActive reports whether the pool accepts new joins
func (r *Registry) PoolActive() bool {
	return r.poolActive
}

// RegistrySnapshot is the serializable registry state
type RegistrySnapshot struct {
	Owner      uuid.UUID `json:"owner"`
	Oracle     uuid.UUID `json:"oracle"`
	HasOracle  bool      `json:"has_oracle"`
	PoolActive bool      `json:"pool_active"`
	Version    int64     `json:"version"`
}

// Snapshot captures the registry state
func (r *Registry) Snapshot() RegistrySnapshot {
	return RegistrySnapshot{
		Owner:      r.owner,
		Oracle:     r.oracle,
		HasOracle:  r.hasOracle,
		PoolActive: r.poolActive,
		Version:    r.version,
	}
}

// Restore replaces the registry state from a snapshot
func (r *Registry) Restore(snap RegistrySnapshot) {
	r.owner = snap.Owner
	r.oracle = snap.Oracle
	r.hasOracle = snap.HasOracle
	r.poolActive = snap.PoolActive
	r.version = snap.Version
}
