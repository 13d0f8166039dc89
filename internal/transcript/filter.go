// Package transcript holds the text transformations applied to recognizer
// output: line filtering, sentence segmentation, seam deduplication and
// normalization. Everything here is single-threaded and total over its input.
package transcript

import "strings"

// noiseMarkers are substrings the recognizer uses for status output and
// non-speech annotations such as "[BLANK_AUDIO]" or "(music)".
var noiseMarkers = []string{"[", "]", "(", "action", "init:", "...", "…"}

// FilterLine returns the trimmed line and true when it is transcript content.
func FilterLine(raw string) (string, bool) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", false
	}
	for _, marker := range noiseMarkers {
		if strings.Contains(raw, marker) {
			return "", false
		}
	}
	return content, true
}
