package db

import (
	tally "github.com/uber-go/tally/v4"
)

// Metrics tracks the per-operation counters of the object layer: model
// reads and writes plus schema synchronization outcomes.
type Metrics struct {
	Find     tally.Counter
	FindFail tally.Counter

	Save     tally.Counter
	SaveFail tally.Counter

	Update     tally.Counter
	UpdateFail tally.Counter

	Delete     tally.Counter
	DeleteFail tally.Counter

	Sync     tally.Counter
	SyncFail tally.Counter

	Provision     tally.Counter
	ProvisionFail tally.Counter
}

// NewMetrics returns a Metrics struct with all counters initialized and
// rooted at the given tally.Scope.
func NewMetrics(scope tally.Scope) Metrics {
	modelScope := scope.SubScope("model")
	modelSuccessScope := modelScope.Tagged(map[string]string{"type": "success"})
	modelFailScope := modelScope.Tagged(map[string]string{"type": "fail"})

	schemaScope := scope.SubScope("schema")
	schemaSuccessScope := schemaScope.Tagged(map[string]string{"type": "success"})
	schemaFailScope := schemaScope.Tagged(map[string]string{"type": "fail"})

	return Metrics{
		Find:     modelSuccessScope.Counter("find"),
		FindFail: modelFailScope.Counter("find"),

		Save:     modelSuccessScope.Counter("save"),
		SaveFail: modelFailScope.Counter("save"),

		Update:     modelSuccessScope.Counter("update"),
		UpdateFail: modelFailScope.Counter("update"),

		Delete:     modelSuccessScope.Counter("delete"),
		DeleteFail: modelFailScope.Counter("delete"),

		Sync:     schemaSuccessScope.Counter("sync"),
		SyncFail: schemaFailScope.Counter("sync"),

		Provision:     schemaSuccessScope.Counter("provision"),
		ProvisionFail: schemaFailScope.Counter("provision"),
	}
}

// NoopMetrics returns metrics that record nothing.
func NoopMetrics() Metrics {
	return NewMetrics(tally.NoopScope)
}
