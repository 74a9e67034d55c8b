package line

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	// MaxTextLength is the per-message limit, counted in UTF-16 code units.
	MaxTextLength = 5000
	// MaxMessages is how many message objects one reply or push may carry.
	MaxMessages = 5

	truncationNotice = "\n...(以下省略)"
)

// SplitResult describes how a text was cut into message objects.
type SplitResult struct {
	Parts      []string
	Truncated  bool
	TotalUnits int
}

// Split cuts text into at most maxParts chunks of at most maxUnits UTF-16
// units each, preferring to cut after a newline. Text that does not fit is
// dropped and the last chunk ends with a notice.
func Split(text string, maxUnits, maxParts int) SplitResult {
	res := SplitResult{TotalUnits: units(text)}
	if res.TotalUnits <= maxUnits {
		res.Parts = []string{text}
		return res
	}

	rest := text
	for rest != "" && len(res.Parts) < maxParts {
		if units(rest) <= maxUnits {
			res.Parts = append(res.Parts, rest)
			rest = ""
			break
		}
		cut := prefixLen(rest, maxUnits)
		if nl := strings.LastIndexByte(rest[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		res.Parts = append(res.Parts, rest[:cut])
		rest = rest[cut:]
	}

	if rest != "" {
		res.Truncated = true
		last := res.Parts[len(res.Parts)-1]
		budget := maxUnits - units(truncationNotice)
		if units(last) > budget {
			last = last[:prefixLen(last, budget)]
		}
		res.Parts[len(res.Parts)-1] = last + truncationNotice
	}
	return res
}

// units counts UTF-16 code units.
func units(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

// prefixLen returns the byte length of the longest prefix of s that fits in
// max units without splitting a rune.
func prefixLen(s string, max int) int {
	n, i := 0, 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		u := runeUnits(r)
		if n+u > max {
			break
		}
		n += u
		i += size
	}
	return i
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
