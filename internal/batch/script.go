// Package batch splits multi-statement CQL scripts so they can be
// executed one statement at a time. Scripts are how fixture and
// provisioning DDL travels: a single text blob with comments, string
// literals and $$-quoted function bodies that a naive semicolon split
// would tear apart.
package batch

import (
	"strings"
)

// Split breaks a CQL script into its statements. Semicolons inside
// single-quoted strings, double-quoted identifiers, $$-quoted bodies and
// comments do not terminate a statement. Comments are kept in place;
// empty statements are dropped. The trailing semicolon is retained.
func Split(script string) []string {
	var stmts []string
	var current strings.Builder

	const (
		stateNone = iota
		stateString   // '...'
		stateName     // "..."
		stateDollar   // $$...$$
		stateLineCmt  // -- or // until newline
		stateBlockCmt // /* ... */
	)
	state := stateNone

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if !isEmptyStatement(stmt) {
			stmts = append(stmts, stmt)
		}
	}

	for i := 0; i < len(script); i++ {
		ch := script[i]
		current.WriteByte(ch)

		switch state {
		case stateNone:
			switch {
			case ch == ';':
				flush()
			case ch == '\'':
				state = stateString
			case ch == '"':
				state = stateName
			case ch == '$' && i+1 < len(script) && script[i+1] == '$':
				current.WriteByte(script[i+1])
				i++
				state = stateDollar
			case ch == '-' && i+1 < len(script) && script[i+1] == '-':
				state = stateLineCmt
			case ch == '/' && i+1 < len(script) && script[i+1] == '/':
				state = stateLineCmt
			case ch == '/' && i+1 < len(script) && script[i+1] == '*':
				current.WriteByte(script[i+1])
				i++
				state = stateBlockCmt
			}

		case stateString:
			if ch == '\'' {
				// '' is an escaped quote, not a terminator.
				if i+1 < len(script) && script[i+1] == '\'' {
					current.WriteByte(script[i+1])
					i++
				} else {
					state = stateNone
				}
			}

		case stateName:
			if ch == '"' {
				if i+1 < len(script) && script[i+1] == '"' {
					current.WriteByte(script[i+1])
					i++
				} else {
					state = stateNone
				}
			}

		case stateDollar:
			if ch == '$' && i+1 < len(script) && script[i+1] == '$' {
				current.WriteByte(script[i+1])
				i++
				state = stateNone
			}

		case stateLineCmt:
			if ch == '\n' {
				state = stateNone
			}

		case stateBlockCmt:
			if ch == '*' && i+1 < len(script) && script[i+1] == '/' {
				current.WriteByte(script[i+1])
				i++
				state = stateNone
			}
		}
	}

	flush()
	return stmts
}

// isEmptyStatement reports whether a fragment contains nothing but
// comments, semicolons and whitespace.
func isEmptyStatement(s string) bool {
	for {
		s = strings.TrimLeft(s, " \t\r\n;")
		switch {
		case s == "":
			return true
		case strings.HasPrefix(s, "--") || strings.HasPrefix(s, "//"):
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return true
			}
			s = s[nl+1:]
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s, "*/")
			if end < 0 {
				return true
			}
			s = s[end+2:]
		default:
			return false
		}
	}
}
