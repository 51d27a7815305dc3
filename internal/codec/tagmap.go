package codec

import "strings"

// onDiskTags converts in-memory snake_case tag keys to the camelCase keys
// persisted in dmedium, and trims values — grounded on
// original_source/model.py's alias_generator = utils.str2camel.
func onDiskTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[toCamel(k)] = strings.TrimSpace(v)
	}
	return out
}

// inMemoryTags converts on-disk tag keys (camelCase, or snake_case from an
// older write) to snake_case for in-process use, trimming values — per
// spec.md §4.2's "deserialization is tolerant of both camel and snake on
// read and trims strings".
func inMemoryTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[toSnake(k)] = strings.TrimSpace(v)
	}
	return out
}

func toCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
