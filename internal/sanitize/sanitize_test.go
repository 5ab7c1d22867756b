package sanitize

import (
	"strings"
	"testing"
)

func TestCleanRendersInlineMarkdown(t *testing.T) {
	c := NewCleaner(500)

	out := c.Clean("Hello **world**")
	if !strings.Contains(out, "<strong>world</strong>") {
		t.Errorf("expected emphasis markup, got %q", out)
	}
	if strings.Contains(out, "<p>") {
		t.Errorf("expected inline-only fragment, got %q", out)
	}
}

func TestCleanStripsUnsafeMarkup(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		banned  []string
		allowed string
	}{
		{
			name:   "script tag",
			input:  "<script>alert(1)</script>hi",
			banned: []string{"<script", "alert(1)"},
		},
		{
			name:   "event handler",
			input:  `<img src="x" onerror="alert(1)">hi`,
			banned: []string{"onerror"},
		},
		{
			name:   "javascript href",
			input:  "[click](javascript:alert(1))",
			banned: []string{"javascript:"},
		},
		{
			name:    "inline code survives",
			input:   "try `rm -rf`",
			banned:  []string{"<script"},
			allowed: "<code>",
		},
	}

	c := NewCleaner(500)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.Clean(tt.input)
			for _, b := range tt.banned {
				if strings.Contains(out, b) {
					t.Errorf("output %q contains %q", out, b)
				}
			}
			if tt.allowed != "" && !strings.Contains(out, tt.allowed) {
				t.Errorf("output %q missing %q", out, tt.allowed)
			}
		})
	}
}

func TestCleanJoinsParagraphsInline(t *testing.T) {
	c := NewCleaner(500)

	out := c.Clean("first\n\nsecond")
	if strings.Contains(out, "<p>") || strings.Contains(out, "</p>") {
		t.Errorf("expected no paragraph tags in output, got %q", out)
	}
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Errorf("expected both paragraphs to survive, got %q", out)
	}

	out = c.Clean("**one**\n\n**two**\n\n**three**")
	if strings.Contains(out, "<p>") || strings.Contains(out, "</p>") {
		t.Errorf("expected no paragraph tags in output, got %q", out)
	}
	if strings.Count(out, "<strong>") != 3 {
		t.Errorf("expected inline markup in every paragraph, got %q", out)
	}
}

func TestCleanNeutralizesBlockSyntax(t *testing.T) {
	c := NewCleaner(500)

	out := c.Clean("# not a heading")
	if strings.Contains(out, "<h1") {
		t.Errorf("heading syntax should stay literal, got %q", out)
	}
}

func TestCleanTruncates(t *testing.T) {
	c := NewCleaner(500)

	long := strings.Repeat("a", 5000)
	out := c.Clean(long)
	if len(out) > 1000 {
		t.Errorf("expected stored content <= 1000 chars, got %d", len(out))
	}
	if !strings.HasPrefix(out, "aaa") {
		t.Errorf("expected truncated text to survive, got %q", out[:20])
	}
}

func TestCleanAlwaysReturns(t *testing.T) {
	c := NewCleaner(500)

	inputs := []string{"", "\x00\xff\xfe", strings.Repeat("💬", 600), "***", "[]()"}
	for _, in := range inputs {
		// Must not panic and must return a string for any input.
		_ = c.Clean(in)
	}
}
