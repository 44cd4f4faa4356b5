package platform

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"
)

// SplitText breaks s into chunks of at most limit runes, preferring to cut
// after a newline, then after a space. Leading and trailing whitespace of
// each chunk is kept so the chunks concatenate back to s.
func SplitText(s string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		if s == "" {
			return nil
		}
		return []string{s}
	}

	var out []string
	for s != "" {
		if utf8.RuneCountInString(s) <= limit {
			out = append(out, s)
			break
		}
		// Byte offset of the rune boundary at limit.
		end := 0
		for i := 0; i < limit; i++ {
			_, size := utf8.DecodeRuneInString(s[end:])
			end += size
		}
		cut := strings.LastIndexByte(s[:end], '\n')
		if cut <= 0 {
			cut = strings.LastIndexByte(s[:end], ' ')
		}
		if cut <= 0 {
			cut = end
		} else {
			cut++
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return out
}

// Rewind seeks r back to its start when it supports seeking, so a request
// body can be sent again on retry. It returns r for convenience.
func Rewind(r io.Reader) io.Reader {
	if s, ok := r.(io.Seeker); ok {
		_, _ = s.Seek(0, io.SeekStart)
	}
	return r
}

// Bytes returns a rewindable reader over b.
func Bytes(b []byte) io.Reader { return bytes.NewReader(b) }
