package scene

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Label layout constants, in em.
const (
	LineHeight = 1.1
	// LabelWidthRatio is the wrap width as a fraction of the node radius.
	LabelWidthRatio = 1.6
)

// Measurer returns the rendered width of text at fontSize pixels.
type Measurer interface {
	Width(text string, fontSize float64) float64
}

// EstimateMeasurer approximates width as a fixed number of em per rune.
type EstimateMeasurer struct {
	EmPerRune float64
}

// DefaultMeasurer assumes 0.6em per rune.
var DefaultMeasurer = EstimateMeasurer{EmPerRune: 0.6}

func (m EstimateMeasurer) Width(text string, fontSize float64) float64 {
	return float64(utf8.RuneCountInString(text)) * m.EmPerRune * fontSize
}

// Label is a wrapped node caption. Lines are LineHeight em apart and the
// block is shifted by DY em so that it is vertically centred on the node.
type Label struct {
	FontSize float64  `json:"font_size"`
	Lines    []string `json:"lines"`
	DY       float64  `json:"dy"`
}

// FontSize is round(r × 0.28) clamped to [10, 18] pixels.
func FontSize(radius float64) float64 {
	return math.Max(10, math.Min(18, math.Round(radius*0.28)))
}

// Wrap breaks text at whitespace into lines no wider than maxWidth. A single
// word wider than maxWidth gets a line of its own.
func Wrap(text string, maxWidth, fontSize float64, m Measurer) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if m.Width(candidate, fontSize) > maxWidth {
			lines = append(lines, line)
			line = w
			continue
		}
		line = candidate
	}
	return append(lines, line)
}

// NewLabel lays out text for a node of the given radius.
func NewLabel(text string, radius float64, m Measurer) Label {
	if m == nil {
		m = DefaultMeasurer
	}
	size := FontSize(radius)
	lines := Wrap(text, radius*LabelWidthRatio, size, m)
	l := Label{FontSize: size, Lines: lines}
	if n := len(lines); n > 1 {
		l.DY = -float64(n-1) * LineHeight / 2
	}
	return l
}
