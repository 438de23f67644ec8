package fyne

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

var _ fyne.Theme = defaultTheme{}

type defaultTheme struct{}

var (
	primaryA20 = color.NRGBA{0xff, 0x88, 0x2e, 0xff}
	primaryA60 = color.NRGBA{0xff, 0xa6, 0x65, 0xff}

	surfaceA0  = color.NRGBA{0x24, 0x1f, 0x31, 0xff}
	surfaceA20 = color.NRGBA{0x39, 0x34, 0x45, 0xff}
	surfaceA40 = color.NRGBA{0x4f, 0x4a, 0x5a, 0xff}
	surfaceA60 = color.NRGBA{0x66, 0x61, 0x66, 0xff}

	disabled = color.NRGBA{35, 35, 35, 255}
	failed   = color.NRGBA{0xe0, 0x4f, 0x4f, 0xff}
)

// ColorNameFailed colours the readiness line once the engine has
// failed to start.
const ColorNameFailed fyne.ThemeColorName = "failed"

var colorMap = map[fyne.ThemeColorName]color.Color{
	ColorNameFailed:                failed,
	theme.ColorNamePrimary:         primaryA20,
	theme.ColorNameBackground:      surfaceA0,
	theme.ColorNameMenuBackground:  surfaceA40,
	theme.ColorNameDisabled:        disabled,
	theme.ColorNameButton:          surfaceA40,
	theme.ColorNameInputBackground: surfaceA40,
	theme.ColorNameFocus:           surfaceA20,
	theme.ColorNameHover:           surfaceA60,
	theme.ColorNameSelection:       primaryA60,
}

func (defaultTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	if c, ok := colorMap[name]; ok {
		return c
	}
	return theme.DefaultTheme().Color(name, variant)
}

func (defaultTheme) Font(style fyne.TextStyle) fyne.Resource    { return theme.DefaultTheme().Font(style) }
func (defaultTheme) Icon(name fyne.ThemeIconName) fyne.Resource { return theme.DefaultTheme().Icon(name) }
func (defaultTheme) Size(name fyne.ThemeSizeName) float32       { return theme.DefaultTheme().Size(name) }
