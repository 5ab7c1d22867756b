// Package sanitize turns raw user input into safe, storable HTML fragments.
// This is the only path by which content reaches storage; it never runs
// again at read time.
package sanitize

import (
	"bytes"
	"strings"

	goaway "github.com/TwiN/go-away"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/util"
)

// DefaultMaxLength caps raw input when no limit is configured.
const DefaultMaxLength = 500

// Cleaner runs the fixed sanitization pipeline: truncate, profanity mask,
// inline markdown render, HTML sanitize. It never fails outward; each step
// degrades to the safest available transformation.
type Cleaner struct {
	maxLength int
	profanity *goaway.ProfanityDetector
	markdown  goldmark.Markdown
	policy    *bluemonday.Policy
}

// NewCleaner builds a Cleaner with the given raw-input length cap.
func NewCleaner(maxLength int) *Cleaner {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	// Paragraph-only block parsing keeps headings, lists and code fences
	// as literal text, so output is an inline-only fragment. Raw HTML is
	// not rendered through; the default renderer omits it.
	md := goldmark.New(
		goldmark.WithParser(parser.NewParser(
			parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 100)),
			parser.WithInlineParsers(parser.DefaultInlineParsers()...),
		)),
	)

	return &Cleaner{
		maxLength: maxLength,
		profanity: goaway.NewProfanityDetector(),
		markdown:  md,
		policy:    bluemonday.UGCPolicy(),
	}
}

// Clean transforms raw input into a fragment safe for direct embedding in a
// document. It always returns a string.
func (c *Cleaner) Clean(raw string) string {
	truncated := truncate(raw, c.maxLength)
	masked := c.censor(truncated)

	var buf bytes.Buffer
	rendered := masked
	if err := c.markdown.Convert([]byte(masked), &buf); err == nil {
		rendered = stripParagraphs(buf.String())
	}

	return c.policy.Sanitize(rendered)
}

// censor masks profanity, falling back to the unfiltered text if the
// detector faults on malformed input.
func (c *Cleaner) censor(s string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = s
		}
	}()
	return c.profanity.Censor(s)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// stripParagraphs removes every <p> element produced by the paragraph-only
// parser, leaving a pure inline fragment. Blank-line-separated input yields
// multiple paragraphs; all of their wrappers must go, not just the outermost
// pair. Literal "<p>" typed by a user is HTML-escaped by the renderer and is
// never matched here.
func stripParagraphs(s string) string {
	s = strings.ReplaceAll(s, "<p>", "")
	s = strings.ReplaceAll(s, "</p>", "")
	return strings.TrimSpace(s)
}
