package runtime

import (
	"testing"
)

func TestHTMLEscape(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"all special characters", `<>&"'/`, "&lt;&gt;&amp;&quot;&#x27;&#x2f;"},
		{"plain text untouched", "hello", "hello"},
		{"mixed", `a<b>"c"`, "a&lt;b&gt;&quot;c&quot;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTML.Escape(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextEscape(t *testing.T) {
	if got := Text.Escape(`<>&`); got != `<>&` {
		t.Errorf("text escaper must pass through, got %q", got)
	}
}

func TestEscapeDisplay(t *testing.T) {
	if got := EscapeDisplay(HTML, "<b>"); got != "&lt;b&gt;" {
		t.Errorf("got %q", got)
	}
	if got := EscapeDisplay(HTML, Safe("<b>")); got != "<b>" {
		t.Errorf("pre-escaped markup must pass through, got %q", got)
	}
	if got := EscapeDisplay(HTML, 42); got != "42" {
		t.Errorf("got %q", got)
	}
}

func TestFmt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "x", "x"},
		{"int", 7, "7"},
		{"safe", Safe("<i>"), "<i>"},
		{"bool", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fmt(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRange(t *testing.T) {
	if got := Range(1, 4); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("Range(1, 4) = %v", got)
	}
	if got := Range(3, 3); len(got) != 0 {
		t.Errorf("empty range = %v", got)
	}
	if got := Range(5, 2); got != nil {
		t.Errorf("inverted range = %v", got)
	}
	if got := RangeInclusive(1, 3); len(got) != 3 || got[2] != 3 {
		t.Errorf("RangeInclusive(1, 3) = %v", got)
	}
}
