// Package layout paginates blocks of text rows onto fixed-height pages.
//
// Content is described as blocks of rows; each row is drawn at the current
// baseline and then advances it. Flow decides page breaks, painters only draw.
package layout

import "strings"

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// Style is the font variant of a span.
type Style struct {
	Size   float64
	Bold   bool
	Italic bool
}

// Span is a run of text drawn at X on the row baseline. For AlignCenter, X
// is the centre of the text.
type Span struct {
	X     float64
	Text  string
	Style Style
	Align Align
}

// Row is one baseline. Advance is the distance to the next baseline.
type Row struct {
	Spans   []Span
	Advance float64
}

// Block groups rows that belong together.
type Block struct {
	Name  string
	Rows  []Row
	After float64 // extra space once the block is done

	// KeepTogether moves the whole block to a new page when it does not
	// fit below the current baseline.
	KeepTogether bool

	// BreakBelow starts a new page before the block when the baseline is
	// already past this value. Zero disables it.
	BreakBelow float64
}

// Height is the vertical space the block consumes, trailing gap included.
func (b Block) Height() float64 {
	h := b.After
	for _, r := range b.Rows {
		h += r.Advance
	}
	return h
}

// Page describes the usable area of every page.
type Page struct {
	Top    float64
	Bottom float64 // last baseline allowed on the page
}

// Placed is a row with its resolved baseline.
type Placed struct {
	Y     float64
	Row   Row
	Block string
}

// Flowed is one output page.
type Flowed struct {
	Number int
	Rows   []Placed
}

// Flow lays blocks out top to bottom. A row whose baseline would fall past
// the bottom starts a new page at Top.
func Flow(blocks []Block, page Page) []Flowed {
	pages := []Flowed{{Number: 1}}
	y := page.Top

	newPage := func() {
		pages = append(pages, Flowed{Number: len(pages) + 1})
		y = page.Top
	}

	for _, b := range blocks {
		if b.BreakBelow > 0 && y > b.BreakBelow {
			newPage()
		}
		if b.KeepTogether && y > page.Top && y+b.Height()-lastAdvance(b) > page.Bottom {
			newPage()
		}
		for _, r := range b.Rows {
			if y > page.Bottom {
				newPage()
			}
			cur := &pages[len(pages)-1]
			cur.Rows = append(cur.Rows, Placed{Y: y, Row: r, Block: b.Name})
			y += r.Advance
		}
		y += b.After
	}

	return pages
}

func lastAdvance(b Block) float64 {
	if len(b.Rows) == 0 {
		return 0
	}
	return b.Rows[len(b.Rows)-1].Advance + b.After
}

// Measurer reports the printed width of text in a style.
type Measurer interface {
	Width(text string, style Style) float64
}

// Wrap breaks text into lines no wider than width. Explicit newlines are
// kept and blank lines survive as empty strings. A single word wider than
// width is left on its own line.
func Wrap(m Measurer, text string, style Style, width float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if m.Width(candidate, style) > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return lines
}

// Fit is Wrap for columns that must not overflow: words wider than width
// are split between characters.
func Fit(m Measurer, text string, style Style, width float64) []string {
	var out []string
	for _, line := range Wrap(m, text, style, width) {
		if m.Width(line, style) <= width {
			out = append(out, line)
			continue
		}
		runes := []rune(line)
		for len(runes) > 0 {
			n := 1
			for n < len(runes) && m.Width(string(runes[:n+1]), style) <= width {
				n++
			}
			out = append(out, string(runes[:n]))
			runes = runes[n:]
		}
	}
	return out
}

// Paragraph wraps text into rows starting at x.
func Paragraph(m Measurer, text string, style Style, x, width, lineHeight float64) []Row {
	lines := Wrap(m, text, style, width)
	rows := make([]Row, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, Line(x, l, style, lineHeight))
	}
	return rows
}

// Line is a single-span row.
func Line(x float64, text string, style Style, advance float64) Row {
	return Row{Spans: []Span{{X: x, Text: text, Style: style}}, Advance: advance}
}
