// Package provision creates the keyspace-level objects a client depends
// on before any table is synchronized: the keyspace itself, user-defined
// types, functions and aggregates. Stages run strictly in that order and
// items within a stage run one at a time, since later objects routinely
// reference earlier ones.
package provision

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/axonops/cqlorm/internal/config"
	"github.com/axonops/cqlorm/internal/logger"
	"github.com/axonops/cqlorm/internal/schema"
)

// Executor runs DDL statements. Satisfied by db.Session.
type Executor interface {
	ExecDDL(ctx context.Context, stmt string) error
}

// Introspector answers existence questions about keyspace-level objects.
type Introspector interface {
	KeyspaceExists(ctx context.Context, name string) (bool, error)
	// TypeFields returns the declared fields of a UDT in declaration
	// order; exists is false when the type is absent.
	TypeFields(ctx context.Context, name string) (fields []UDTField, exists bool, err error)
}

// UDTField is one field of a user-defined type.
type UDTField struct {
	Name string
	Type string
}

// UDT declares a user-defined type.
type UDT struct {
	Name   string
	Fields []UDTField
}

// UDF declares a user-defined function. Provisioning always issues
// CREATE OR REPLACE, so a changed body simply wins.
type UDF struct {
	Name              string
	ArgumentNames     []string
	ArgumentTypes     []string
	ReturnType        string
	Language          string
	Body              string
	CalledOnNullInput bool
}

// UDA declares a user-defined aggregate over an existing state function.
type UDA struct {
	Name          string
	ArgumentTypes []string
	StateFunction string
	StateType     string
	FinalFunction string // optional
	InitCond      string // optional, rendered verbatim
}

// Provisioner creates missing keyspace-level objects. It never drops
// anything: provisioning is additive by construction.
type Provisioner struct {
	exec        Executor
	intro       Introspector
	keyspace    string
	replication *config.ReplicationStrategy
}

// New returns a Provisioner bound to a keyspace.
func New(exec Executor, intro Introspector, keyspace string, replication *config.ReplicationStrategy) *Provisioner {
	return &Provisioner{exec: exec, intro: intro, keyspace: keyspace, replication: replication}
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// EnsureKeyspace creates the keyspace when it does not exist.
func (p *Provisioner) EnsureKeyspace(ctx context.Context) error {
	exists, err := p.intro.KeyspaceExists(ctx, p.keyspace)
	if err != nil {
		return errors.Wrapf(err, "checking keyspace %q", p.keyspace)
	}
	if exists {
		return nil
	}
	stmt := CreateKeyspaceCQL(p.keyspace, p.replication)
	logger.DebugfToFile("Provision", "creating keyspace %s", p.keyspace)
	if err := p.exec.ExecDDL(ctx, stmt); err != nil {
		return errors.Wrapf(err, "creating keyspace %q", p.keyspace)
	}
	return nil
}

// CreateKeyspaceCQL renders the CREATE KEYSPACE statement for a
// replication strategy. A nil strategy falls back to SimpleStrategy with
// a replication factor of 1.
func CreateKeyspaceCQL(keyspace string, replication *config.ReplicationStrategy) string {
	if replication == nil {
		replication = &config.ReplicationStrategy{Class: "SimpleStrategy", ReplicationFactor: 1}
	}

	var opts []string
	opts = append(opts, fmt.Sprintf("'class': '%s'", replication.Class))
	if strings.EqualFold(replication.Class, "NetworkTopologyStrategy") {
		dcs := make([]string, 0, len(replication.DataCenters))
		for dc := range replication.DataCenters {
			dcs = append(dcs, dc)
		}
		sort.Strings(dcs)
		for _, dc := range dcs {
			opts = append(opts, fmt.Sprintf("'%s': %d", dc, replication.DataCenters[dc]))
		}
	} else {
		factor := replication.ReplicationFactor
		if factor == 0 {
			factor = 1
		}
		opts = append(opts, fmt.Sprintf("'replication_factor': %d", factor))
	}

	return fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = {%s};",
		quote(keyspace), strings.Join(opts, ", "))
}

// EnsureTypes creates missing UDTs and appends fields missing from
// existing ones. A declared field whose type disagrees with the live
// field is an error: UDT fields cannot be altered in place and dropping
// them would lose data.
func (p *Provisioner) EnsureTypes(ctx context.Context, udts []UDT) error {
	for _, udt := range udts {
		if err := p.ensureType(ctx, udt); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) ensureType(ctx context.Context, udt UDT) error {
	liveFields, exists, err := p.intro.TypeFields(ctx, udt.Name)
	if err != nil {
		return errors.Wrapf(err, "checking type %q", udt.Name)
	}

	if !exists {
		logger.DebugfToFile("Provision", "creating type %s", udt.Name)
		if err := p.exec.ExecDDL(ctx, CreateTypeCQL(p.keyspace, udt)); err != nil {
			return errors.Wrapf(err, "creating type %q", udt.Name)
		}
		return nil
	}

	liveTypes := make(map[string]string, len(liveFields))
	for _, f := range liveFields {
		info, err := schema.ParseType(f.Type)
		if err != nil {
			return errors.Wrapf(err, "type %q live field %q", udt.Name, f.Name)
		}
		liveTypes[f.Name] = info.Canonical()
	}

	for _, f := range udt.Fields {
		info, err := schema.ParseType(f.Type)
		if err != nil {
			return errors.Wrapf(err, "type %q field %q", udt.Name, f.Name)
		}
		liveType, present := liveTypes[f.Name]
		if !present {
			stmt := fmt.Sprintf("ALTER TYPE %s.%s ADD %s %s;",
				quote(p.keyspace), quote(udt.Name), quote(f.Name), f.Type)
			if err := p.exec.ExecDDL(ctx, stmt); err != nil {
				return errors.Wrapf(err, "adding field %q to type %q", f.Name, udt.Name)
			}
			continue
		}
		if liveType != info.Canonical() {
			return errors.Errorf("type %q field %q is %s in the database but declared %s; UDT fields cannot be altered",
				udt.Name, f.Name, liveType, info.Canonical())
		}
	}
	return nil
}

// CreateTypeCQL renders the CREATE TYPE statement for a UDT.
func CreateTypeCQL(keyspace string, udt UDT) string {
	fields := make([]string, 0, len(udt.Fields))
	for _, f := range udt.Fields {
		fields = append(fields, fmt.Sprintf("%s %s", quote(f.Name), f.Type))
	}
	return fmt.Sprintf("CREATE TYPE IF NOT EXISTS %s.%s (%s);",
		quote(keyspace), quote(udt.Name), strings.Join(fields, ", "))
}

// EnsureFunctions provisions the declared UDFs.
func (p *Provisioner) EnsureFunctions(ctx context.Context, udfs []UDF) error {
	for _, udf := range udfs {
		if err := p.exec.ExecDDL(ctx, CreateFunctionCQL(p.keyspace, udf)); err != nil {
			return errors.Wrapf(err, "creating function %q", udf.Name)
		}
	}
	return nil
}

// CreateFunctionCQL renders the CREATE OR REPLACE FUNCTION statement.
func CreateFunctionCQL(keyspace string, f UDF) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("CREATE OR REPLACE FUNCTION %s.%s(", quote(keyspace), quote(f.Name)))
	args := make([]string, 0, len(f.ArgumentNames))
	for i, argName := range f.ArgumentNames {
		argType := ""
		if i < len(f.ArgumentTypes) {
			argType = f.ArgumentTypes[i]
		}
		args = append(args, fmt.Sprintf("%s %s", argName, argType))
	}
	sb.WriteString(strings.Join(args, ", "))
	sb.WriteString(")")

	if f.CalledOnNullInput {
		sb.WriteString(" CALLED ON NULL INPUT")
	} else {
		sb.WriteString(" RETURNS NULL ON NULL INPUT")
	}

	sb.WriteString(fmt.Sprintf(" RETURNS %s", f.ReturnType))
	sb.WriteString(fmt.Sprintf(" LANGUAGE %s", f.Language))
	sb.WriteString(fmt.Sprintf(" AS $$%s$$", f.Body))
	sb.WriteString(";")

	return sb.String()
}

// EnsureAggregates provisions the declared UDAs. Aggregates reference
// their state functions, so EnsureFunctions must run first.
func (p *Provisioner) EnsureAggregates(ctx context.Context, udas []UDA) error {
	for _, uda := range udas {
		if err := p.exec.ExecDDL(ctx, CreateAggregateCQL(p.keyspace, uda)); err != nil {
			return errors.Wrapf(err, "creating aggregate %q", uda.Name)
		}
	}
	return nil
}

// CreateAggregateCQL renders the CREATE OR REPLACE AGGREGATE statement.
func CreateAggregateCQL(keyspace string, a UDA) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("CREATE OR REPLACE AGGREGATE %s.%s(%s)",
		quote(keyspace), quote(a.Name), strings.Join(a.ArgumentTypes, ", ")))
	sb.WriteString(fmt.Sprintf(" SFUNC %s", quote(a.StateFunction)))
	sb.WriteString(fmt.Sprintf(" STYPE %s", a.StateType))
	if a.FinalFunction != "" {
		sb.WriteString(fmt.Sprintf(" FINALFUNC %s", quote(a.FinalFunction)))
	}
	if a.InitCond != "" {
		sb.WriteString(fmt.Sprintf(" INITCOND %s", a.InitCond))
	}
	sb.WriteString(";")

	return sb.String()
}
