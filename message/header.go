package message

import (
	"regexp"
	"strings"
)

// HeaderValue holds every occurrence of one header field, in order.
// A field seen once is a single value; repeated fields such as Received
// accumulate.
type HeaderValue struct {
	values []string
}

// Multiple reports whether the header occurred more than once.
func (v HeaderValue) Multiple() bool { return len(v.values) > 1 }

// Values returns all occurrences in order.
func (v HeaderValue) Values() []string {
	out := make([]string, len(v.values))
	copy(out, v.values)
	return out
}

// First returns the first occurrence.
func (v HeaderValue) First() string {
	if len(v.values) == 0 {
		return ""
	}
	return v.values[0]
}

// Last returns the last occurrence.
func (v HeaderValue) Last() string {
	if len(v.values) == 0 {
		return ""
	}
	return v.values[len(v.values)-1]
}

// Header is an ordered header block keyed by lowercase field name.
type Header struct {
	keys   []string
	fields map[string]*HeaderValue
}

// Get returns the value for a field name, case-insensitively.
func (h Header) Get(name string) (HeaderValue, bool) {
	if h.fields == nil {
		return HeaderValue{}, false
	}
	v, ok := h.fields[strings.ToLower(name)]
	if !ok {
		return HeaderValue{}, false
	}
	return *v, true
}

// Has reports whether the field is present.
func (h Header) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Keys returns the lowercase field names in first-seen order.
func (h Header) Keys() []string {
	out := make([]string, len(h.keys))
	copy(out, h.keys)
	return out
}

// Len returns the number of distinct fields.
func (h Header) Len() int { return len(h.keys) }

var headerNamePattern = regexp.MustCompile(`^([a-zA-Z0-9-]+):`)

// ParseHeader parses a raw header block. Field names are lowercased, values
// trimmed, and continuation lines (starting with whitespace) are folded into
// the previous value with a single space.
func ParseHeader(block string) Header {
	h := Header{fields: make(map[string]*HeaderValue)}
	var current *HeaderValue

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			if current != nil {
				current.values[len(current.values)-1] += " " + trimmed
			}
			continue
		}

		m := headerNamePattern.FindStringSubmatch(trimmed)
		if m == nil {
			// Not a field and not a continuation: treat as folded text.
			if current != nil {
				current.values[len(current.values)-1] += " " + trimmed
			}
			continue
		}

		key := strings.ToLower(m[1])
		value := strings.TrimSpace(trimmed[len(m[0]):])

		v, ok := h.fields[key]
		if !ok {
			v = &HeaderValue{}
			h.fields[key] = v
			h.keys = append(h.keys, key)
		}
		v.values = append(v.values, value)
		current = v
	}

	return h
}

// unfold joins continuation lines of a raw header block onto the line they
// continue, one field per line.
func unfold(block string) string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && (line[0] == ' ' || line[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += " " + trimmed
			continue
		}
		lines = append(lines, trimmed)
	}
	return strings.Join(lines, "\n")
}

var headBodySeparator = regexp.MustCompile(`\n\s*\n`)

// splitHeadBody splits raw content on its first blank line. The body is
// empty when there is no blank line.
func splitHeadBody(content string) (string, string) {
	loc := headBodySeparator.FindStringIndex(content)
	if loc == nil {
		return content, ""
	}
	return content[:loc[0]], content[loc[1]:]
}
