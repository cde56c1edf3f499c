package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// normalizeStrings rewrites every string literal in valid JSON data so that
// it carries only the escapes JSON requires, with all other text written
// literally. Strings without escapes are copied unchanged.
func normalizeStrings(data []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(data))

	for i := 0; i < len(data); {
		c := data[i]
		if c != '"' {
			out.WriteByte(c)
			i++
			continue
		}

		end, escaped := stringEnd(data, i)
		if end < 0 {
			return nil, fmt.Errorf("unterminated string at offset %d", i)
		}
		lit := data[i : end+1]
		if !escaped {
			out.Write(lit)
		} else {
			var s string
			if err := json.Unmarshal(lit, &s); err != nil {
				return nil, err
			}
			writeString(&out, s)
		}
		i = end + 1
	}

	return out.Bytes(), nil
}

// stringEnd returns the index of the quote closing the string that starts
// at data[start], and whether the string contains a backslash escape.
func stringEnd(data []byte, start int) (int, bool) {
	escaped := false
	for i := start + 1; i < len(data); i++ {
		switch data[i] {
		case '\\':
			escaped = true
			i++
		case '"':
			return i, escaped
		}
	}
	return -1, escaped
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
