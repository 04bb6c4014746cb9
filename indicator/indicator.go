// Package indicator draws the current bar on a single, continuously rewritten
// terminal line.
package indicator

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/gosuri/uilive"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/pattern"
	"github.com/sirupsen/logrus"
)

const (
	litGlyph   = "●"
	unlitGlyph = "○"

	// how far an unlit beat is pulled towards grey
	dimming = 0.7
)

var (
	strongColor = colorful.Color{R: 1, G: 0.37, B: 0.37}
	mediumColor = colorful.Color{R: 1, G: 0.84, B: 0.37}
	weakColor   = colorful.Color{R: 0.37, G: 0.69, B: 1}
	grey        = colorful.Color{R: 0.4, G: 0.4, B: 0.4}

	headerStyle = lipgloss.NewStyle().Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Indicator is a beat callback sink that shows one glyph per beat of the bar.
type Indicator struct {
	writer *uilive.Writer
	logger *logrus.Entry

	mu        sync.Mutex
	signature string
	pattern   []pattern.Accent
	tempo     float64
	playing   bool
	current   int
}

func New(out io.Writer) *Indicator {
	w := uilive.New()
	w.Out = out
	return &Indicator{
		writer:  w,
		logger:  logger.ForComponent("indicator"),
		current: -1,
	}
}

// SetPattern replaces the bar being shown and clears the lit beat.
func (i *Indicator) SetPattern(signature string, p []pattern.Accent) {
	i.mu.Lock()
	i.signature = signature
	i.pattern = append([]pattern.Accent(nil), p...)
	i.current = -1
	i.mu.Unlock()
	i.redraw()
}

func (i *Indicator) SetTempo(bpm float64) {
	i.mu.Lock()
	i.tempo = bpm
	i.mu.Unlock()
	i.redraw()
}

func (i *Indicator) SetPlaying(playing bool) {
	i.mu.Lock()
	i.playing = playing
	i.mu.Unlock()
	i.redraw()
}

// OnBeat lights the given beat. A negative beat, or one outside the bar,
// leaves every beat unlit.
func (i *Indicator) OnBeat(beat int) {
	i.mu.Lock()
	i.current = beat
	i.mu.Unlock()
	i.redraw()
}

// Render returns the line that would be drawn for the current state.
func (i *Indicator) Render() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	state := "stopped"
	if i.playing {
		state = "playing"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%3.0f BPM  %-3s", i.tempo, i.signature)))
	b.WriteString("  ")
	for n, a := range i.pattern {
		if n > 0 {
			b.WriteString(" ")
		}
		b.WriteString(glyph(a, n == i.current))
	}
	b.WriteString("  ")
	b.WriteString(helpStyle.Render(state))
	return b.String()
}

func (i *Indicator) redraw() {
	line := i.Render()
	fmt.Fprintln(i.writer, line)
	if err := i.writer.Flush(); err != nil {
		i.logger.WithError(err).Debug("Could not redraw indicator")
	}
}

// Close leaves the last drawn line on screen and moves to a fresh one.
func (i *Indicator) Close() {
	fmt.Fprintln(i.writer.Out)
}

// Color returns the colour of a beat with the given accent.
func Color(a pattern.Accent, lit bool) colorful.Color {
	c := weakColor
	switch a {
	case pattern.Strong:
		c = strongColor
	case pattern.Medium:
		c = mediumColor
	}
	if lit {
		return c
	}
	return c.BlendLab(grey, dimming).Clamped()
}

func glyph(a pattern.Accent, lit bool) string {
	g := unlitGlyph
	if lit {
		g = litGlyph
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(Color(a, lit).Hex())).Render(g)
}
