package transcript

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinBoundary is the smallest rune offset at which a terminator may
// close a sentence. Shorter heads are usually abbreviations or cut-off words.
const DefaultMinBoundary = 3

const terminators = ".!?:"

// Segmenter accumulates fragments and cuts complete sentences off the front
// of its buffer.
type Segmenter struct {
	buf         string
	minBoundary int
}

func NewSegmenter(minBoundary int) *Segmenter {
	if minBoundary < 0 {
		minBoundary = DefaultMinBoundary
	}
	return &Segmenter{minBoundary: minBoundary}
}

// Feed appends a fragment and returns the sentences it completed, oldest first.
func (s *Segmenter) Feed(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if s.buf == "" {
		s.buf = content
	} else {
		s.buf += " " + content
	}
	s.buf = CollapseRepeats(s.buf)

	var sentences []string
	for {
		idx := strings.LastIndexAny(s.buf, terminators)
		if idx < 0 || utf8.RuneCountInString(s.buf[:idx]) < s.minBoundary {
			break
		}
		sentences = append(sentences, s.buf[:idx+1])
		s.buf = strings.TrimLeft(s.buf[idx+1:], " \t\r\n")
	}
	return sentences
}

// Flush returns whatever is left in the buffer, punctuated or not, and empties it.
func (s *Segmenter) Flush() (string, bool) {
	rest := strings.TrimSpace(s.buf)
	s.buf = ""
	if rest == "" {
		return "", false
	}
	return rest, true
}

func (s *Segmenter) Reset() { s.buf = "" }

// CollapseRepeats drops every word that equals its predecessor ignoring case,
// so "years years passed" becomes "years passed". Words are rejoined with
// single spaces.
func CollapseRepeats(text string) string {
	words := strings.Fields(text)
	if len(words) < 2 {
		return strings.Join(words, " ")
	}
	out := make([]string, 1, len(words))
	out[0] = words[0]
	for _, w := range words[1:] {
		if strings.EqualFold(w, out[len(out)-1]) {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}
