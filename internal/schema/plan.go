package schema

import (
	"github.com/pkg/errors"

	"github.com/axonops/cqlorm/internal/logger"
)

// Policy is the operator-declared risk tolerance governing how schema
// drift between the declared and live schema is resolved.
type Policy string

const (
	// PolicySafe refuses to touch a diverged table; the operator applies
	// changes manually. This is the default and the production floor.
	PolicySafe Policy = "safe"
	// PolicyAlter tries an in-place alter first and falls back to
	// drop-and-recreate when the change is structurally impossible.
	PolicyAlter Policy = "alter"
	// PolicyDrop drops and recreates the table on any divergence.
	PolicyDrop Policy = "drop"
)

// ResolvePolicy resolves the effective migration policy from the explicit
// per-model setting, the legacy drop-on-change flag, and the default, in
// that order. A production environment unconditionally forces "safe",
// overriding any explicit setting.
func ResolvePolicy(migration string, dropOnChange bool, production bool) Policy {
	if production {
		return PolicySafe
	}
	switch Policy(migration) {
	case PolicySafe, PolicyAlter, PolicyDrop:
		return Policy(migration)
	}
	if dropOnChange {
		return PolicyDrop
	}
	return PolicySafe
}

// Decision is the migration action selected for one sync call. It is
// computed from the declared schema, the live schema and the policy,
// consumed immediately, and never persisted.
type Decision int

const (
	// DecisionNoOp means declared and live schemas are structurally equal.
	DecisionNoOp Decision = iota
	// DecisionCreate means the table does not exist and must be created.
	DecisionCreate
	// DecisionAlter means non-key columns changed and an in-place alter
	// should be attempted, falling back to recreate if impossible.
	DecisionAlter
	// DecisionRecreate means the table must be dropped and recreated.
	DecisionRecreate
	// DecisionReject means the sync must abort; Plan returns the reason
	// alongside.
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionNoOp:
		return "noop"
	case DecisionCreate:
		return "create"
	case DecisionAlter:
		return "alter"
	case DecisionRecreate:
		return "recreate"
	case DecisionReject:
		return "reject"
	default:
		return "unknown"
	}
}

var (
	// ErrMigrationSuspended is returned when a schema diverges under the
	// "safe" policy. No DDL has been issued; the change must be applied
	// manually.
	ErrMigrationSuspended = errors.New("schema diverged and migration is suspended, apply the change manually or set migration to alter/drop")

	// ErrSchemaNotFound is returned when a model requires its table to
	// already exist and it does not.
	ErrSchemaNotFound = errors.New("table does not exist and table creation is disabled for this model")
)

// Plan compares the declared schema against the live schema (nil when the
// table does not exist) and selects a migration decision under the given
// policy. createIfMissing reflects the model's createTable option; when
// false an absent table is a rejection, not a create.
func Plan(declared *Schema, live *Schema, policy Policy, createIfMissing bool) (Decision, error) {
	if live == nil {
		if !createIfMissing {
			return DecisionReject, errors.Wrapf(ErrSchemaNotFound, "table %q", declared.Table)
		}
		return DecisionCreate, nil
	}

	declaredNorm, err := Normalize(declared)
	if err != nil {
		return DecisionReject, err
	}
	liveNorm, err := Normalize(live)
	if err != nil {
		return DecisionReject, err
	}

	if declaredNorm.TableEqual(liveNorm) {
		if declaredNorm.Equal(liveNorm) {
			return DecisionNoOp, nil
		}
		// Only indexes or views differ; the table proper is settled.
		// Safe issues no DDL at all, so even this drift is a rejection.
		// Alter and drop hand it to the sync engine, which creates the
		// missing objects additively.
		switch policy {
		case PolicyAlter, PolicyDrop:
			return DecisionNoOp, nil
		}
		logger.DebugfToFile("Plan", "table %s: secondary objects diverged under safe policy", declared.Table)
		return DecisionReject, errors.Wrapf(ErrMigrationSuspended, "table %q", declared.Table)
	}

	switch policy {
	case PolicyAlter:
		// Key structure is physical: a partition-key or clustering-order
		// change can never be applied in place.
		if declaredNorm.KeyEqual(liveNorm) {
			return DecisionAlter, nil
		}
		logger.DebugfToFile("Plan", "table %s: key structure changed, alter not possible", declared.Table)
		return DecisionRecreate, nil
	case PolicyDrop:
		return DecisionRecreate, nil
	default:
		return DecisionReject, errors.Wrapf(ErrMigrationSuspended, "table %q", declared.Table)
	}
}
