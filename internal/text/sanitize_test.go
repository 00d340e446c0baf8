package text

import (
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "plain", input: "Can we check in at noon?", want: "Can we check in at noon?"},
		{name: "crlf", input: "Hi\r\nthere\rfriend", want: "Hi\nthere\nfriend"},
		{name: "collapse spaces", input: "  two\t\tspaces   here  ", want: "two spaces here"},
		{name: "invisible runes", input: "no\u200Bspace\uFEFF", want: "no space"},
		{name: "control chars", input: "bell\x07char", want: "bell char"},
		{name: "blank lines", input: "a\n\n\n\n\nb", want: "a\n\nb"},
		{name: "paragraph separator", input: "a\u2029b", want: "a\n\nb"},
		{name: "only whitespace", input: " \n\t \n", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("héllo", 2); got != "hé" {
		t.Errorf("Truncate() = %q, want %q", got, "hé")
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate() = %q, want unchanged", got)
	}
	if got := Truncate("x", 0); got != "" {
		t.Errorf("Truncate(0) = %q, want empty", got)
	}
	long := strings.Repeat("é", 250)
	if n := len([]rune(Truncate(long, 200))); n != 200 {
		t.Errorf("Truncate() kept %d runes, want 200", n)
	}
}

func TestCleanDropsFormatRunes(t *testing.T) {
	t.Parallel()

	for _, r := range "\u2060\u180E\u200D\uFEFF\u00AD\u202A\u202B\u202C\u202D\u202E" {
		in := "a" + string(r) + "b"
		if got := Clean(in); got != "ab" {
			t.Errorf("Clean(%q) = %q, want %q", in, got, "ab")
		}
	}
}
