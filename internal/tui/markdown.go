package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

type mdKey struct {
	dark  bool
	width int
}

// glamour's auto style queries the terminal, so renderers are built once per
// background and wrap width and then reused.
type mdCache struct {
	mu sync.Mutex
	m  map[mdKey]*glamour.TermRenderer
}

var descriptions = &mdCache{m: map[mdKey]*glamour.TermRenderer{}}

func (c *mdCache) renderer(k mdKey) (*glamour.TermRenderer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.m[k]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(descriptionStyle(k.dark)),
		glamour.WithWordWrap(k.width),
	)
	if err != nil {
		return nil, err
	}
	c.m[k] = r
	return r, nil
}

// renderMarkdown renders a task description, falling back to the raw text
// when glamour fails.
func renderMarkdown(text string, width int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	r, err := descriptions.renderer(mdKey{dark: lipgloss.HasDarkBackground(), width: max(width, 10)})
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func descriptionStyle(dark bool) ansi.StyleConfig {
	cfg := styles.LightStyleConfig
	pick := func(c lipgloss.AdaptiveColor) *string { return &c.Light }
	if dark {
		cfg = styles.DarkStyleConfig
		pick = func(c lipgloss.AdaptiveColor) *string { return &c.Dark }
	}
	no, yes := false, true
	var margin uint

	cfg.Document.Margin = &margin
	body := pick(colorSurfaceFg)
	for _, b := range []*ansi.StyleBlock{&cfg.Heading, &cfg.H1, &cfg.H2, &cfg.H3} {
		b.Color = body
	}
	cfg.Text.Color = body
	cfg.Code.Color = body
	cfg.CodeBlock.Color = body
	cfg.Strong.Color = nil
	cfg.Emph.Color = nil
	cfg.BlockQuote.Faint = &no

	cfg.Link.Color = pick(colorAccent)
	cfg.Link.Underline = &yes
	cfg.LinkText.Color = cfg.Link.Color
	return cfg
}
