package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// ColorNameRetransmit and ColorNameFastRetransmit are custom theme color
// names for the two retransmission severities the dispatcher's scheduler
// emits, so a retransmission badge and a fast-retransmit badge read as
// visually distinct from a generic warning or error. A fast-retransmit
// recovers a loss before a timeout would have, so it gets the hotter of
// the two colors.
const (
	ColorNameRetransmit     fyne.ThemeColorName = "eftpRetransmit"
	ColorNameFastRetransmit fyne.ThemeColorName = "eftpFastRetransmit"
)

// CustomTheme layers eftp-specific severities on top of fyne's default
// theme. cmd/monitor installs it app-wide; its success and error colors
// reach the connection status indicator, while no widget in cmd/monitor
// requests the two retransmit color names.
type CustomTheme struct {
	fyne.Theme
}

// NewCustomTheme builds the monitor's theme.
func NewCustomTheme() *CustomTheme {
	return &CustomTheme{
		Theme: theme.DefaultTheme(),
	}
}

// Color resolves eftp's own severities plus a softened version of fyne's
// defaults.
func (t *CustomTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return color.RGBA{R: 0, G: 102, B: 204, A: 255}
	case theme.ColorNameSuccess:
		return color.RGBA{R: 0, G: 153, B: 0, A: 255}
	case theme.ColorNameWarning:
		return color.RGBA{R: 255, G: 153, B: 0, A: 255}
	case theme.ColorNameError:
		return color.RGBA{R: 204, G: 0, B: 0, A: 255}
	case theme.ColorNameBackground:
		return color.RGBA{R: 248, G: 249, B: 250, A: 255}
	case theme.ColorNameForeground:
		return color.RGBA{R: 33, G: 37, B: 41, A: 255}
	case ColorNameRetransmit:
		return color.RGBA{R: 0xE0, G: 0xB0, B: 0x40, A: 255}
	case ColorNameFastRetransmit:
		return color.RGBA{R: 0xFF, G: 0x8A, B: 0x3D, A: 255}
	default:
		return t.Theme.Color(name, variant)
	}
}

// Font defers to the wrapped theme; eftp has no typeface of its own.
func (t *CustomTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.Theme.Font(style)
}

// Icon defers to the wrapped theme; eftp has no icon set of its own.
func (t *CustomTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.Theme.Icon(name)
}

// Size tightens spacing for the monitor's denser, log-heavy layout.
func (t *CustomTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNamePadding:
		return 8
	case theme.SizeNameScrollBar:
		return 12
	case theme.SizeNameScrollBarSmall:
		return 8
	case theme.SizeNameSeparatorThickness:
		return 1
	case theme.SizeNameInputBorder:
		return 1
	case theme.SizeNameInputRadius:
		return 4
	default:
		return t.Theme.Size(name)
	}
}
