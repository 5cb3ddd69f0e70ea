package schema

import (
	"sort"
	"strings"
)

// NormalizedSchema is the canonical projection of a Schema used only for
// structural equality comparison. Type strings are canonicalized, key and
// clustering-order structures are ordered sequences, and index lists are
// sorted so declaration order does not affect comparison.
type NormalizedSchema struct {
	Table           string
	Fields          map[string]string // field name -> canonical type
	PartitionKeys   []string
	ClusteringOrder []ClusteringKey
	Indexes         []string
	CustomIndexes   []string // canonical "column|class" entries, sorted
	Views           map[string]NormalizedView
}

// NormalizedView is the canonical projection of a materialized view.
type NormalizedView struct {
	Select          []string // sorted
	PartitionKeys   []string
	ClusteringOrder []ClusteringKey
}

// Normalize produces the canonical comparable form of a schema. It is
// pure and deterministic; a malformed type string is a validation error.
func Normalize(s *Schema) (*NormalizedSchema, error) {
	fields := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		info, err := ParseType(f.Type)
		if err != nil {
			return nil, validationErrorf("table %q field %q has malformed type %q: %v", s.Table, f.Name, f.Type, err)
		}
		fields[f.Name] = info.Canonical()
	}

	indexes := append([]string(nil), s.Indexes...)
	sort.Strings(indexes)

	customIndexes := make([]string, 0, len(s.CustomIndexes))
	for _, ci := range s.CustomIndexes {
		customIndexes = append(customIndexes, ci.On+"|"+strings.ToLower(ci.Using))
	}
	sort.Strings(customIndexes)

	views := make(map[string]NormalizedView, len(s.Views))
	for _, v := range s.Views {
		sel := append([]string(nil), v.Select...)
		sort.Strings(sel)
		views[strings.ToLower(v.Name)] = NormalizedView{
			Select:          sel,
			PartitionKeys:   append([]string(nil), v.PartitionKeys...),
			ClusteringOrder: append([]ClusteringKey(nil), v.ClusteringKeys...),
		}
	}

	return &NormalizedSchema{
		Table:           strings.ToLower(s.Table),
		Fields:          fields,
		PartitionKeys:   append([]string(nil), s.PartitionKeys...),
		ClusteringOrder: append([]ClusteringKey(nil), s.ClusteringKeys...),
		Indexes:         indexes,
		CustomIndexes:   customIndexes,
		Views:           views,
	}, nil
}

// KeyEqual reports whether two normalized schemas share an identical
// physical key structure: the same partition key columns in the same
// order, and the same clustering columns with the same sort directions.
// Key structure decides alter-eligibility; everything else is cosmetic
// by comparison.
func (n *NormalizedSchema) KeyEqual(other *NormalizedSchema) bool {
	return stringsEqual(n.PartitionKeys, other.PartitionKeys) &&
		clusteringEqual(n.ClusteringOrder, other.ClusteringOrder)
}

// TableEqual reports structural equality of the table proper: name, key
// structure and columns. Secondary objects (indexes, views) are excluded;
// their drift is gated separately by policy and never makes the table
// itself alter-eligible.
func (n *NormalizedSchema) TableEqual(other *NormalizedSchema) bool {
	if n.Table != other.Table {
		return false
	}
	if !n.KeyEqual(other) {
		return false
	}
	if len(n.Fields) != len(other.Fields) {
		return false
	}
	for name, typ := range n.Fields {
		if other.Fields[name] != typ {
			return false
		}
	}
	return true
}

// Equal reports full structural equality of two normalized schemas,
// secondary objects included.
func (n *NormalizedSchema) Equal(other *NormalizedSchema) bool {
	if !n.TableEqual(other) {
		return false
	}
	if !stringsEqual(n.Indexes, other.Indexes) || !stringsEqual(n.CustomIndexes, other.CustomIndexes) {
		return false
	}
	if len(n.Views) != len(other.Views) {
		return false
	}
	for name, view := range n.Views {
		otherView, ok := other.Views[name]
		if !ok || !view.equal(otherView) {
			return false
		}
	}
	return true
}

func (v NormalizedView) equal(other NormalizedView) bool {
	return stringsEqual(v.Select, other.Select) &&
		stringsEqual(v.PartitionKeys, other.PartitionKeys) &&
		clusteringEqual(v.ClusteringOrder, other.ClusteringOrder)
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clusteringEqual(a, b []ClusteringKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
