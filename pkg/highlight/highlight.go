// Package highlight renders HTML documents and diffs for terminal output.
package highlight

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/aymanbagabas/go-udiff"
	"github.com/muesli/termenv"
)

// DefaultStyle is the chroma style used when none is given.
const DefaultStyle = "monokai"

// Renderer highlights source text with chroma.
type Renderer struct {
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
}

// New creates a [Renderer] for the named chroma language, formatted for
// the given terminal color profile. [termenv.Ascii] disables colors.
func New(language string, profile termenv.Profile, style string) *Renderer {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}

	formatterName := "noop"
	switch profile {
	case termenv.TrueColor:
		formatterName = "terminal16m"

	case termenv.ANSI256:
		formatterName = "terminal256"

	case termenv.ANSI:
		formatterName = "terminal8"

	case termenv.Ascii:
	}

	if style == "" {
		style = DefaultStyle
	}

	return &Renderer{
		lexer:     chroma.Coalesce(lexer),
		formatter: formatters.Get(formatterName),
		style:     styles.Get(style),
	}
}

// Render highlights src.
func (r *Renderer) Render(src string) (string, error) {
	iterator, err := r.lexer.Tokenise(nil, src)
	if err != nil {
		return "", fmt.Errorf("lexer tokenize: %w", err)
	}

	buf := &bytes.Buffer{}

	err = r.formatter.Format(buf, r.style, iterator)
	if err != nil {
		return "", fmt.Errorf("format: %w", err)
	}

	return buf.String(), nil
}

// Diff returns a unified diff from before to after, labelled with name. It
// returns an empty string when the two are equal.
func Diff(name, before, after string) string {
	if before == after {
		return ""
	}

	return udiff.Unified("a/"+name, "b/"+name, ensureNewline(before), ensureNewline(after))
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}

	return s + "\n"
}
