// Package sink defines the outbound integration points a model can
// manage alongside its table: an external search index and a graph
// mapping. The core ships with a null implementation; every call site
// holds a non-nil Sink and never branches on whether one is configured.
package sink

import (
	"context"

	"github.com/axonops/cqlorm/internal/schema"
)

// Sink receives schema lifecycle notifications for externally managed
// surfaces.
type Sink interface {
	// EnsureSearchIndex asserts the search index for a model exists.
	EnsureSearchIndex(ctx context.Context, table string) error
	// PutSearchMapping pushes the model's field mapping to the index.
	PutSearchMapping(ctx context.Context, table string, s *schema.Schema) error
	// EnsureGraph asserts the graph for the keyspace exists.
	EnsureGraph(ctx context.Context, keyspace string) error
	// PutGraphMapping pushes the model's vertex/edge mapping.
	PutGraphMapping(ctx context.Context, table string, s *schema.Schema) error
}

// Nop is the null Sink: every call succeeds and does nothing.
type Nop struct{}

var _ Sink = Nop{}

func (Nop) EnsureSearchIndex(context.Context, string) error { return nil }

func (Nop) PutSearchMapping(context.Context, string, *schema.Schema) error { return nil }

func (Nop) EnsureGraph(context.Context, string) error { return nil }

func (Nop) PutGraphMapping(context.Context, string, *schema.Schema) error { return nil }
