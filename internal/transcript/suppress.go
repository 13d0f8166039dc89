package transcript

import "strings"

const seamPunctuation = ".!?:;,"

// Suppressor removes the head word of a sentence when the recognizer repeated
// the tail word of the previously emitted one across the seam.
type Suppressor struct {
	last string
}

// Suppress returns sentence with a duplicated leading word dropped and
// remembers the result for the next comparison.
func (s *Suppressor) Suppress(sentence string) string {
	out := sentence
	if s.last != "" {
		words := strings.Fields(sentence)
		prev := strings.Fields(s.last)
		if len(words) >= 2 && len(prev) > 0 {
			tail := strings.TrimRight(prev[len(prev)-1], seamPunctuation)
			head := strings.TrimRight(words[0], seamPunctuation)
			if tail != "" && strings.EqualFold(tail, head) {
				out = strings.Join(words[1:], " ")
			}
		}
	}
	s.last = out
	return out
}

func (s *Suppressor) Reset() { s.last = "" }
