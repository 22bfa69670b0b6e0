package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedMeasurer gives every rune the same width.
type fixedMeasurer float64

func (f fixedMeasurer) Width(text string, _ Style) float64 {
	return float64(len([]rune(text))) * float64(f)
}

var a4 = Page{Top: 15, Bottom: 270}

func rows(n int, advance float64) []Row {
	out := make([]Row, n)
	for i := range out {
		out[i] = Line(10, "x", Style{Size: 10}, advance)
	}
	return out
}

func TestFlow_SinglePage(t *testing.T) {
	pages := Flow([]Block{
		{Name: "title", Rows: rows(2, 7), After: 8},
		{Name: "body", Rows: rows(3, 5)},
	}, a4)

	require.Len(t, pages, 1)
	got := pages[0].Rows
	require.Len(t, got, 5)
	assert.Equal(t, 15.0, got[0].Y)
	assert.Equal(t, 22.0, got[1].Y)
	assert.Equal(t, 37.0, got[2].Y)
	assert.Equal(t, "body", got[2].Block)
}

func TestFlow_BreaksPastBottom(t *testing.T) {
	// 15 + 52*5 = 275 so the 53rd row cannot stay on page one.
	pages := Flow([]Block{{Name: "prose", Rows: rows(60, 5)}}, a4)

	require.Len(t, pages, 2)
	assert.Len(t, pages[0].Rows, 52)
	assert.Equal(t, 270.0, pages[0].Rows[51].Y)
	assert.Equal(t, 15.0, pages[1].Rows[0].Y)
	assert.Equal(t, 2, pages[1].Number)

	for _, p := range pages {
		for _, r := range p.Rows {
			assert.LessOrEqual(t, r.Y, a4.Bottom)
		}
	}
}

func TestFlow_BreakBelow(t *testing.T) {
	blocks := []Block{
		{Name: "prose", Rows: rows(50, 5)}, // ends at 265
		{Name: "signature", Rows: rows(1, 15), BreakBelow: 260},
	}
	pages := Flow(blocks, a4)

	require.Len(t, pages, 2)
	assert.Equal(t, "signature", pages[1].Rows[0].Block)
	assert.Equal(t, 15.0, pages[1].Rows[0].Y)
}

func TestFlow_BreakBelowNotTriggered(t *testing.T) {
	blocks := []Block{
		{Name: "prose", Rows: rows(40, 5)}, // ends at 215
		{Name: "signature", Rows: rows(1, 15), BreakBelow: 260},
	}
	pages := Flow(blocks, a4)
	require.Len(t, pages, 1)
}

func TestFlow_KeepTogether(t *testing.T) {
	blocks := []Block{
		{Name: "prose", Rows: rows(48, 5)}, // ends at 255
		{Name: "trace", Rows: rows(4, 6), KeepTogether: true},
	}
	pages := Flow(blocks, a4)

	require.Len(t, pages, 2)
	assert.Len(t, pages[0].Rows, 48)
	assert.Len(t, pages[1].Rows, 4)
}

func TestFlow_KeepTogetherAtTopDoesNotLoop(t *testing.T) {
	pages := Flow([]Block{{Name: "huge", Rows: rows(80, 5), KeepTogether: true}}, a4)
	assert.Len(t, pages, 2)
}

func TestFlow_Empty(t *testing.T) {
	pages := Flow(nil, a4)
	require.Len(t, pages, 1)
	assert.Empty(t, pages[0].Rows)
}

func TestWrap(t *testing.T) {
	m := fixedMeasurer(1)

	lines := Wrap(m, "aaa bbb ccc\n\nddd", Style{}, 7)
	assert.Equal(t, []string{"aaa bbb", "ccc", "", "ddd"}, lines)

	lines = Wrap(m, "supercalifragilistic ok", Style{}, 5)
	assert.Equal(t, []string{"supercalifragilistic", "ok"}, lines)
}

func TestFit(t *testing.T) {
	m := fixedMeasurer(1)

	assert.Equal(t, []string{"super", "calif", "ragil", "istic", "ok"}, Fit(m, "supercalifragilistic ok", Style{}, 5))
	assert.Equal(t, []string{"aaa bbb", "ccc"}, Fit(m, "aaa bbb ccc", Style{}, 7))
	assert.Equal(t, []string{""}, Fit(m, "", Style{}, 7))

	for _, l := range Fit(m, "mario.rossi.con.un.indirizzo.lunghissimo@esempio-molto-lungo.it", Style{}, 12) {
		assert.LessOrEqual(t, m.Width(l, Style{}), 12.0)
	}
}

func TestParagraph(t *testing.T) {
	got := Paragraph(fixedMeasurer(1), "one two three", Style{Size: 10}, 10, 8, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "one two", got[0].Spans[0].Text)
	assert.Equal(t, 10.0, got[1].Spans[0].X)
	assert.Equal(t, 5.0, got[1].Advance)
}
