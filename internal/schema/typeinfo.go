package schema

import (
	"fmt"
	"strings"
)

// TypeInfo is the structured form of a CQL column type. Parameterized
// types (collections, tuples) carry their argument types in declaration
// order; the order is semantically significant and never reordered.
type TypeInfo struct {
	Name     string     // "text", "int", "list", "map", "udt", ...
	Frozen   bool       // frozen<...> wrapper present
	Args     []TypeInfo // element types for list/set/map/tuple
	UDTName  string     // for UDT types, the name of the UDT
	Keyspace string     // for UDT types, optional keyspace qualifier
}

// ParseType parses a CQL type string into structured type information.
// Surface differences such as casing and whitespace are absorbed here.
func ParseType(typeStr string) (TypeInfo, error) {
	typeStr = strings.TrimSpace(typeStr)
	if typeStr == "" {
		return TypeInfo{}, fmt.Errorf("empty type string")
	}

	sc := &typeScanner{input: typeStr}
	info, err := sc.scanType()
	if err != nil {
		return TypeInfo{}, err
	}
	sc.skipSpace()
	if sc.pos != len(sc.input) {
		return TypeInfo{}, fmt.Errorf("unexpected trailing input at position %d in %q", sc.pos, typeStr)
	}
	return info, nil
}

type typeScanner struct {
	input string
	pos   int
}

func (sc *typeScanner) scanType() (TypeInfo, error) {
	if sc.word("frozen") {
		if !sc.accept('<') {
			return TypeInfo{}, fmt.Errorf("expected '<' after 'frozen' at position %d", sc.pos)
		}
		inner, err := sc.scanType()
		if err != nil {
			return TypeInfo{}, err
		}
		if !sc.accept('>') {
			return TypeInfo{}, fmt.Errorf("expected '>' to close 'frozen' at position %d", sc.pos)
		}
		inner.Frozen = true
		return inner, nil
	}

	name := sc.ident()
	if name == "" {
		return TypeInfo{}, fmt.Errorf("expected type name at position %d", sc.pos)
	}

	info := TypeInfo{Name: strings.ToLower(name)}
	// varchar is an alias for text; the server always reports text.
	if info.Name == "varchar" {
		info.Name = "text"
	}

	switch info.Name {
	case "list", "set":
		if !sc.accept('<') {
			return TypeInfo{}, fmt.Errorf("expected '<' after '%s' at position %d", info.Name, sc.pos)
		}
		elem, err := sc.scanType()
		if err != nil {
			return TypeInfo{}, fmt.Errorf("failed to parse %s element type: %w", info.Name, err)
		}
		if !sc.accept('>') {
			return TypeInfo{}, fmt.Errorf("expected '>' to close '%s' at position %d", info.Name, sc.pos)
		}
		info.Args = []TypeInfo{elem}

	case "map":
		if !sc.accept('<') {
			return TypeInfo{}, fmt.Errorf("expected '<' after 'map' at position %d", sc.pos)
		}
		key, err := sc.scanType()
		if err != nil {
			return TypeInfo{}, fmt.Errorf("failed to parse map key type: %w", err)
		}
		if !sc.accept(',') {
			return TypeInfo{}, fmt.Errorf("expected ',' between map key and value types at position %d", sc.pos)
		}
		val, err := sc.scanType()
		if err != nil {
			return TypeInfo{}, fmt.Errorf("failed to parse map value type: %w", err)
		}
		if !sc.accept('>') {
			return TypeInfo{}, fmt.Errorf("expected '>' to close 'map' at position %d", sc.pos)
		}
		info.Args = []TypeInfo{key, val}

	case "tuple":
		if !sc.accept('<') {
			return TypeInfo{}, fmt.Errorf("expected '<' after 'tuple' at position %d", sc.pos)
		}
		for {
			elem, err := sc.scanType()
			if err != nil {
				return TypeInfo{}, fmt.Errorf("failed to parse tuple element: %w", err)
			}
			info.Args = append(info.Args, elem)

			if sc.accept('>') {
				break
			}
			if !sc.accept(',') {
				return TypeInfo{}, fmt.Errorf("expected ',' or '>' in tuple at position %d", sc.pos)
			}
		}

	default:
		if sc.accept('.') {
			// The identifier was a keyspace qualifier for a UDT.
			info.Keyspace = info.Name
			udtName := sc.ident()
			if udtName == "" {
				return TypeInfo{}, fmt.Errorf("expected UDT name after keyspace at position %d", sc.pos)
			}
			info.Name = "udt"
			info.UDTName = strings.ToLower(udtName)
		} else if !isNativeType(info.Name) {
			info.UDTName = info.Name
			info.Name = "udt"
		}
	}

	return info, nil
}

func (sc *typeScanner) ident() string {
	sc.skipSpace()
	start := sc.pos
	for sc.pos < len(sc.input) {
		ch := sc.input[sc.pos]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') || ch == '_' {
			sc.pos++
		} else {
			break
		}
	}
	return sc.input[start:sc.pos]
}

func (sc *typeScanner) accept(ch byte) bool {
	sc.skipSpace()
	if sc.pos < len(sc.input) && sc.input[sc.pos] == ch {
		sc.pos++
		return true
	}
	return false
}

func (sc *typeScanner) word(keyword string) bool {
	sc.skipSpace()
	if sc.pos+len(keyword) > len(sc.input) {
		return false
	}
	if !strings.EqualFold(sc.input[sc.pos:sc.pos+len(keyword)], keyword) {
		return false
	}
	// Must not be a prefix of a longer identifier.
	if sc.pos+len(keyword) < len(sc.input) {
		next := sc.input[sc.pos+len(keyword)]
		if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
			(next >= '0' && next <= '9') || next == '_' {
			return false
		}
	}
	sc.pos += len(keyword)
	return true
}

func (sc *typeScanner) skipSpace() {
	for sc.pos < len(sc.input) && (sc.input[sc.pos] == ' ' || sc.input[sc.pos] == '\t' ||
		sc.input[sc.pos] == '\n' || sc.input[sc.pos] == '\r') {
		sc.pos++
	}
}

// nativeTypes is the set of CQL native (non-parameterized) types.
var nativeTypes = map[string]bool{
	"ascii":     true,
	"bigint":    true,
	"blob":      true,
	"boolean":   true,
	"counter":   true,
	"date":      true,
	"decimal":   true,
	"double":    true,
	"duration":  true,
	"float":     true,
	"inet":      true,
	"int":       true,
	"smallint":  true,
	"text":      true,
	"time":      true,
	"timestamp": true,
	"timeuuid":  true,
	"tinyint":   true,
	"uuid":      true,
	"varchar":   true,
	"varint":    true,
}

func isNativeType(name string) bool {
	return nativeTypes[name]
}

// Canonical renders the type in its canonical comparable form: lower-case,
// no whitespace, frozen wrappers preserved, argument order preserved.
// Canonical output parses back to an identical TypeInfo.
func (t TypeInfo) Canonical() string {
	var sb strings.Builder
	t.writeCanonical(&sb)
	return sb.String()
}

func (t TypeInfo) writeCanonical(sb *strings.Builder) {
	if t.Frozen {
		sb.WriteString("frozen<")
	}

	switch t.Name {
	case "list", "set", "map", "tuple":
		sb.WriteString(t.Name)
		sb.WriteString("<")
		for i, arg := range t.Args {
			if i > 0 {
				sb.WriteString(",")
			}
			arg.writeCanonical(sb)
		}
		sb.WriteString(">")
	case "udt":
		if t.Keyspace != "" {
			sb.WriteString(strings.ToLower(t.Keyspace))
			sb.WriteString(".")
		}
		sb.WriteString(strings.ToLower(t.UDTName))
	default:
		sb.WriteString(t.Name)
	}

	if t.Frozen {
		sb.WriteString(">")
	}
}

// CQL renders the type as it appears in DDL statements.
func (t TypeInfo) CQL() string {
	var sb strings.Builder
	t.writeCQL(&sb)
	return sb.String()
}

func (t TypeInfo) writeCQL(sb *strings.Builder) {
	if t.Frozen {
		sb.WriteString("frozen<")
	}

	switch t.Name {
	case "list", "set", "map", "tuple":
		sb.WriteString(t.Name)
		sb.WriteString("<")
		for i, arg := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			arg.writeCQL(sb)
		}
		sb.WriteString(">")
	case "udt":
		if t.Keyspace != "" {
			sb.WriteString(t.Keyspace)
			sb.WriteString(".")
		}
		sb.WriteString(t.UDTName)
	default:
		sb.WriteString(t.Name)
	}

	if t.Frozen {
		sb.WriteString(">")
	}
}
