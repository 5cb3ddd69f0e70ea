// Package cqlorm is an object layer over Cassandra: models declare their
// table schema once, the client keeps the live schema synchronized under
// an explicit migration policy, and model operations compile to
// parameterized CQL.
package cqlorm

import (
	"context"

	tally "github.com/uber-go/tally/v4"

	"github.com/axonops/cqlorm/internal/batch"
	"github.com/axonops/cqlorm/internal/config"
	"github.com/axonops/cqlorm/internal/db"
	"github.com/axonops/cqlorm/internal/logger"
	"github.com/axonops/cqlorm/internal/migrate"
	"github.com/axonops/cqlorm/internal/model"
	"github.com/axonops/cqlorm/internal/provision"
	"github.com/axonops/cqlorm/internal/schema"
	"github.com/axonops/cqlorm/internal/sink"
)

// Client is a connected cqlorm instance: one session, one keyspace, one
// model registry.
type Client struct {
	config      *config.Config
	session     *db.Session
	registry    *model.Registry
	engine      *migrate.Engine
	provisioner *provision.Provisioner
	sink        sink.Sink
	metrics     db.Metrics

	types      []provision.UDT
	functions  []provision.UDF
	aggregates []provision.UDA
}

// Option configures a Client before it connects.
type Option func(*Client)

// WithScope roots the client's metrics at the given tally scope. Without
// it metrics are recorded nowhere.
func WithScope(scope tally.Scope) Option {
	return func(c *Client) {
		c.metrics = db.NewMetrics(scope.SubScope("cqlorm"))
	}
}

// WithSink installs the sink receiving search-index and graph
// notifications for models that manage them.
func WithSink(s sink.Sink) Option {
	return func(c *Client) {
		c.sink = s
	}
}

// WithTypes declares the user-defined types provisioned at connect time,
// before any model synchronizes.
func WithTypes(udts ...provision.UDT) Option {
	return func(c *Client) {
		c.types = append(c.types, udts...)
	}
}

// WithFunctions declares the user-defined functions provisioned at
// connect time.
func WithFunctions(udfs ...provision.UDF) Option {
	return func(c *Client) {
		c.functions = append(c.functions, udfs...)
	}
}

// WithAggregates declares the user-defined aggregates provisioned at
// connect time, after functions.
func WithAggregates(udas ...provision.UDA) Option {
	return func(c *Client) {
		c.aggregates = append(c.aggregates, udas...)
	}
}

// Connect establishes the session and provisions the keyspace-level
// objects. Stages run strictly in order: keyspace, types, functions,
// aggregates. Models are registered afterwards with AddModel.
func Connect(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger.SetDebugEnabled(cfg.Debug)

	client := &Client{
		config:   cfg,
		registry: model.NewRegistry(),
		sink:     sink.Nop{},
		metrics:  db.NoopMetrics(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if cfg.CreateKeyspace {
		if err := createKeyspace(ctx, cfg); err != nil {
			return nil, err
		}
	}

	session, err := db.Connect(cfg)
	if err != nil {
		return nil, err
	}
	client.session = session

	client.provisioner = provision.New(session, provision.NewIntrospector(session),
		cfg.Keyspace, cfg.DefaultReplicationStrategy)
	client.engine = migrate.NewEngine(session, migrate.NewIntrospector(session), cfg.Keyspace)

	if err := client.provisionObjects(ctx); err != nil {
		session.Shutdown()
		return nil, err
	}
	return client, nil
}

// createKeyspace connects without a keyspace bound and creates the
// configured one when missing. The session cannot bind a keyspace that
// does not exist yet, hence the separate bootstrap connection.
func createKeyspace(ctx context.Context, cfg *config.Config) error {
	sysCfg := *cfg
	sysCfg.Keyspace = ""

	sysSession, err := db.Connect(&sysCfg)
	if err != nil {
		return err
	}
	defer sysSession.Shutdown()

	p := provision.New(sysSession, provision.NewIntrospector(sysSession),
		cfg.Keyspace, cfg.DefaultReplicationStrategy)
	return p.EnsureKeyspace(ctx)
}

func (c *Client) provisionObjects(ctx context.Context) error {
	if err := c.provisioner.EnsureTypes(ctx, c.types); err != nil {
		c.metrics.ProvisionFail.Inc(1)
		return err
	}
	if err := c.provisioner.EnsureFunctions(ctx, c.functions); err != nil {
		c.metrics.ProvisionFail.Inc(1)
		return err
	}
	if err := c.provisioner.EnsureAggregates(ctx, c.aggregates); err != nil {
		c.metrics.ProvisionFail.Inc(1)
		return err
	}
	c.metrics.Provision.Inc(1)
	return nil
}

// ModelOptions override the configured per-model defaults at
// registration.
type ModelOptions struct {
	// CreateTable overrides whether a missing table is created; nil
	// falls back to the configured default.
	CreateTable *bool
	// Migration overrides the migration policy: "safe", "alter" or
	// "drop". Empty falls back to the configured default. Production
	// environments force "safe" regardless.
	Migration string
	// DropTableOnSchemaChange is the legacy synonym for Migration="drop".
	DropTableOnSchemaChange bool
	// ManageSearchIndex pushes the model's mapping to the search sink
	// after each schema sync.
	ManageSearchIndex bool
	// ManageGraph pushes the model's mapping to the graph sink after
	// each schema sync.
	ManageGraph bool
	// Hooks are the model's operation callbacks.
	Hooks model.Hooks
}

// AddModel registers a model under a name. The table is synchronized
// lazily on the model's first operation, not here.
func (c *Client) AddModel(name string, s *schema.Schema, opts *ModelOptions) (*model.Model, error) {
	if opts == nil {
		opts = &ModelOptions{}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	m := model.New(name, s, c.session, c.config.Keyspace, c.metrics)
	m.SetHooks(opts.Hooks)
	m.SetSync(c.syncFunc(m, opts))

	if err := c.registry.Add(m); err != nil {
		return nil, err
	}
	return m, nil
}

// MustAddModel registers a model and panics on failure. For startup-time
// registration where a bad declaration is a programming error.
func (c *Client) MustAddModel(name string, s *schema.Schema, opts *ModelOptions) *model.Model {
	m, err := c.AddModel(name, s, opts)
	if err != nil {
		panic("cqlorm: " + err.Error())
	}
	return m
}

// syncFunc builds the lazy schema synchronization closure for a model.
func (c *Client) syncFunc(m *model.Model, opts *ModelOptions) func(context.Context) error {
	defaults := c.config.Defaults

	migration := opts.Migration
	if migration == "" {
		migration = defaults.Migration
	}
	dropOnChange := opts.DropTableOnSchemaChange || defaults.DropTableOnSchemaChange
	policy := schema.ResolvePolicy(migration, dropOnChange, c.config.Production())

	createTable := defaults.CreateTable
	if opts.CreateTable != nil {
		createTable = *opts.CreateTable
	}

	manageSearch := opts.ManageSearchIndex || defaults.ManageSearchIndex
	manageGraph := opts.ManageGraph || defaults.ManageGraph

	return func(ctx context.Context) error {
		err := c.engine.Sync(ctx, m.Schema(), migrate.Options{
			Policy:      policy,
			CreateTable: createTable,
		})
		if err != nil {
			return err
		}
		if manageSearch {
			if err := c.sink.EnsureSearchIndex(ctx, m.Schema().Table); err != nil {
				return err
			}
			if err := c.sink.PutSearchMapping(ctx, m.Schema().Table, m.Schema()); err != nil {
				return err
			}
		}
		if manageGraph {
			if err := c.sink.EnsureGraph(ctx, c.config.Keyspace); err != nil {
				return err
			}
			if err := c.sink.PutGraphMapping(ctx, m.Schema().Table, m.Schema()); err != nil {
				return err
			}
		}
		return nil
	}
}

// Model looks up a registered model by name.
func (c *Client) Model(name string) (*model.Model, error) {
	return c.registry.Get(name)
}

// ModelNames returns the registered model names, sorted.
func (c *Client) ModelNames() []string {
	return c.registry.Names()
}

// Session exposes the underlying session for raw queries and batches.
func (c *Client) Session() *db.Session {
	return c.session
}

// ExecBatch runs model-built statements as one logged batch.
func (c *Client) ExecBatch(ctx context.Context, stmts []db.Statement) error {
	return c.session.ExecBatch(ctx, stmts)
}

// ExecScript splits a multi-statement CQL script and executes its
// statements in order, stopping at the first failure. Intended for
// fixture and provisioning scripts, not for parameterized DML.
func (c *Client) ExecScript(ctx context.Context, script string) error {
	for _, stmt := range batch.Split(script) {
		if err := c.session.ExecDDL(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the session down.
func (c *Client) Close() {
	if c.session != nil {
		c.session.Shutdown()
	}
}
