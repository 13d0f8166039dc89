package transcript

import (
	"reflect"
	"testing"
)

func TestFilterLineRejectsNoise(t *testing.T) {
	noisy := []string{
		"",
		"   ",
		"[BLANK_AUDIO]",
		"something] trailing",
		" (music playing)",
		"whisper_init: loading model",
		"init: found 1 capture devices",
		"[Start speaking]",
		"no action taken",
		"and then...",
		"wait…",
	}
	for _, line := range noisy {
		if got, ok := FilterLine(line); ok {
			t.Fatalf("expected %q to be filtered, got %q", line, got)
		}
	}
}

func TestFilterLineKeepsContent(t *testing.T) {
	cases := map[string]string{
		"um":                          "um",
		"  the meeting is at noon.  ": "the meeting is at noon.",
		"what time is it?\n":          "what time is it?",
	}
	for in, want := range cases {
		got, ok := FilterLine(in)
		if !ok {
			t.Fatalf("expected %q to pass the filter", in)
		}
		if got != want {
			t.Fatalf("FilterLine(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSegmenterJoinsFragments(t *testing.T) {
	s := NewSegmenter(DefaultMinBoundary)
	if got := s.Feed("hello"); len(got) != 0 {
		t.Fatalf("expected no sentence yet, got %v", got)
	}
	got := s.Feed("world.")
	if !reflect.DeepEqual(got, []string{"hello world."}) {
		t.Fatalf("unexpected sentences %v", got)
	}
	if s.buf != "" {
		t.Fatalf("expected empty buffer, got %q", s.buf)
	}
}

func TestSegmenterMinimumBoundary(t *testing.T) {
	s := NewSegmenter(DefaultMinBoundary)
	if got := s.Feed("ab."); len(got) != 0 {
		t.Fatalf("expected boundary at position 2 to be held back, got %v", got)
	}

	s = NewSegmenter(DefaultMinBoundary)
	got := s.Feed("abc.")
	if !reflect.DeepEqual(got, []string{"abc."}) {
		t.Fatalf("expected abc. to be extracted, got %v", got)
	}
}

func TestSegmenterCollapsesStutter(t *testing.T) {
	s := NewSegmenter(DefaultMinBoundary)
	got := s.Feed("years years passed.")
	if !reflect.DeepEqual(got, []string{"years passed."}) {
		t.Fatalf("unexpected sentences %v", got)
	}
}

func TestSegmenterCollapsesAcrossSeam(t *testing.T) {
	s := NewSegmenter(DefaultMinBoundary)
	s.Feed("we went to the")
	got := s.Feed("The store.")
	if !reflect.DeepEqual(got, []string{"we went to the store."}) {
		t.Fatalf("unexpected sentences %v", got)
	}
}

func TestSegmenterHoldsTail(t *testing.T) {
	s := NewSegmenter(DefaultMinBoundary)
	got := s.Feed("it is late. and then")
	if !reflect.DeepEqual(got, []string{"it is late."}) {
		t.Fatalf("unexpected sentences %v", got)
	}
	if s.buf != "and then" {
		t.Fatalf("expected tail to remain buffered, got %q", s.buf)
	}
	got = s.Feed("we left!")
	if !reflect.DeepEqual(got, []string{"and then we left!"}) {
		t.Fatalf("unexpected sentences %v", got)
	}
}

func TestSegmenterNeverFails(t *testing.T) {
	s := NewSegmenter(DefaultMinBoundary)
	for _, in := range []string{"", "   ", "?", "no punctuation here"} {
		if got := s.Feed(in); len(got) != 0 {
			t.Fatalf("unexpected sentences %v for %q", got, in)
		}
	}
	rest, ok := s.Flush()
	if !ok {
		t.Fatal("expected remainder on flush")
	}
	if rest != "? no punctuation here" {
		t.Fatalf("unexpected remainder %q", rest)
	}
	if _, ok := s.Flush(); ok {
		t.Fatal("expected empty buffer after flush")
	}
}

func TestSuppressorDropsSeamDuplicate(t *testing.T) {
	var s Suppressor
	s.Suppress("I went home.")
	if got := s.Suppress("home is nice."); got != "is nice." {
		t.Fatalf("expected %q, got %q", "is nice.", got)
	}
	if s.last != "is nice." {
		t.Fatalf("expected last emitted to track modified sentence, got %q", s.last)
	}
}

func TestSuppressorFirstSentenceUntouched(t *testing.T) {
	var s Suppressor
	if got := s.Suppress("home home."); got != "home home." {
		t.Fatalf("first sentence must pass through, got %q", got)
	}
}

func TestSuppressorSingleWordKept(t *testing.T) {
	var s Suppressor
	s.Suppress("we are done.")
	if got := s.Suppress("Done!"); got != "Done!" {
		t.Fatalf("single word sentence must be kept, got %q", got)
	}
}

func TestSuppressorResetClearsLast(t *testing.T) {
	var s Suppressor
	s.Suppress("the meeting is at noon.")
	s.Reset()
	if got := s.Suppress("noon it starts."); got != "noon it starts." {
		t.Fatalf("expected no suppression after reset, got %q", got)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"i am i'm going", "I am I'm going"},
		{"so i think i'll stay and i've seen it", "So I think I'll stay and I've seen it"},
		{"hello , world .", "Hello, world."},
		{"wait ; what ?", "Wait; what?"},
		{"the the cat sat", "The cat sat"},
		{"done.next one", "Done. next one"},
		{"stop!go?now", "Stop! go? now"},
		{"42 is the answer", "42 is the answer"},
		{"ok.i am here", "Ok. I am here"},
		{"  padded text  ", "Padded text"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"i am i'm going",
		"ok.i i am here",
		"a  ,  b . c",
		"so so so i i'd say",
		"x.y.z",
		"émile est là.voilà",
		"you you ?",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
