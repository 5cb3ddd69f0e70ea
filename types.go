package cqlorm

import (
	"github.com/axonops/cqlorm/internal/config"
	"github.com/axonops/cqlorm/internal/db"
	"github.com/axonops/cqlorm/internal/model"
	"github.com/axonops/cqlorm/internal/provision"
	"github.com/axonops/cqlorm/internal/schema"
	"github.com/axonops/cqlorm/internal/sink"
)

// Aliases exposing the library surface from the root package.
type (
	Config              = config.Config
	ModelDefaults       = config.ModelDefaults
	ReplicationStrategy = config.ReplicationStrategy
	SSLConfig           = config.SSLConfig

	Schema           = schema.Schema
	Field            = schema.Field
	ClusteringKey    = schema.ClusteringKey
	CustomIndex      = schema.CustomIndex
	MaterializedView = schema.MaterializedView
	SchemaOptions    = schema.Options

	Model         = model.Model
	Query         = model.Query
	Update        = model.Update
	Predicate     = model.Predicate
	Op            = model.Op
	Hooks         = model.Hooks
	SaveOptions   = model.SaveOptions
	DeleteOptions = model.DeleteOptions

	Session   = db.Session
	Statement = db.Statement

	UDT      = provision.UDT
	UDTField = provision.UDTField
	UDF      = provision.UDF
	UDA      = provision.UDA

	Sink    = sink.Sink
	NopSink = sink.Nop
)

// Query operators.
const (
	OpEq          = model.OpEq
	OpGt          = model.OpGt
	OpGte         = model.OpGte
	OpLt          = model.OpLt
	OpLte         = model.OpLte
	OpIn          = model.OpIn
	OpContains    = model.OpContains
	OpContainsKey = model.OpContainsKey
	OpLike        = model.OpLike
)

// Sentinel errors callers branch on.
var (
	ErrMigrationSuspended = schema.ErrMigrationSuspended
	ErrSchemaNotFound     = schema.ErrSchemaNotFound
	ErrModelNotRegistered = model.ErrModelNotRegistered
	ErrBeforeHookAborted  = model.ErrBeforeHookAborted
	ErrAfterHookFailed    = model.ErrAfterHookFailed
	ErrCASNotApplied      = model.ErrCASNotApplied
)

// NewQuery returns an empty query.
func NewQuery() *Query {
	return model.NewQuery()
}

// LoadConfig loads configuration from the default file locations (or the
// given path) and applies environment overrides.
func LoadConfig(path ...string) (*Config, error) {
	return config.LoadConfig(path...)
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return config.Default()
}
