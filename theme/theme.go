package theme

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-sixteenstep/sequencer"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	StepEmpty    rune // · no note
	StepActive   rune // ● sounding note
	StepOff      rune // ○ stored note-off
	StepPlayhead rune // ▶ current playing
}

// New returns a theme over palette (Plasma when nil)
func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Plasma()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			StepEmpty:    '·',
			StepActive:   '●',
			StepOff:      '○',
			StepPlayhead: '▶',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleActive  = 0.7
	RoleWarning = 0.8
)

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

// Velocity colors a note by its velocity
func (t *Theme) Velocity(v uint8) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(float64(v) / 127))
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}

// TrackView is what RenderTrack draws
type TrackView struct {
	Name     string
	Muted    bool
	Steps    int
	Position int
	Notes    []sequencer.Note
}

// StepCells returns one symbol per step, loudest note per step winning
func (t *Theme) StepCells(v TrackView) []rune {
	cells := make([]rune, v.Steps)
	for i := range cells {
		cells[i] = t.Symbols.StepEmpty
	}
	// notes arrive loudest first
	for _, n := range v.Notes {
		s := int(n.Step)
		if s >= v.Steps || cells[s] != t.Symbols.StepEmpty {
			continue
		}
		if n.Velocity > 0 {
			cells[s] = t.Symbols.StepActive
		} else {
			cells[s] = t.Symbols.StepOff
		}
	}
	if v.Position >= 0 && v.Position < v.Steps && cells[v.Position] == t.Symbols.StepEmpty {
		cells[v.Position] = t.Symbols.StepPlayhead
	}
	return cells
}

// RenderTrack draws a header line and a step grid for one track
func (t *Theme) RenderTrack(v TrackView) string {
	headerStyle := lipgloss.NewStyle().Foreground(t.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(t.Muted())
	infoStyle := lipgloss.NewStyle().Foreground(t.FG())
	playheadStyle := lipgloss.NewStyle().Foreground(t.Active())

	header := headerStyle.Render(v.Name)
	if v.Muted {
		header += " " + lipgloss.NewStyle().Foreground(t.Warning()).Render("muted")
	}
	header += infoStyle.Render(fmt.Sprintf("  %d steps, %d notes", v.Steps, len(v.Notes)))

	loudest := make(map[int]uint8)
	for _, n := range v.Notes {
		if _, ok := loudest[int(n.Step)]; !ok {
			loudest[int(n.Step)] = n.Velocity
		}
	}

	var grid strings.Builder
	for i, c := range t.StepCells(v) {
		if i > 0 && i%4 == 0 {
			grid.WriteByte(' ')
		}
		style := dimStyle
		if c == t.Symbols.StepPlayhead {
			style = playheadStyle
		}
		if vel, ok := loudest[i]; ok && vel > 0 {
			style = lipgloss.NewStyle().Foreground(t.Velocity(vel))
		}
		grid.WriteString(style.Render(string(c)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, grid.String())
}
