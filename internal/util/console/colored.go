// Package console renders chat text for terminal output.
package console

import (
	"strings"

	"github.com/gookit/color"
	"go.minekube.com/common/minecraft/component"
	"go.minekube.com/common/minecraft/component/codec/legacy"
)

var legacyCodes = map[rune]color.Color{
	'0': color.Black,
	'1': color.Blue,
	'2': color.Green,
	'3': color.Cyan,
	'4': color.Red,
	'5': color.Magenta,
	'6': color.Yellow,
	'7': color.White,
	'8': color.Gray,
	'9': color.LightCyan,
	'a': color.LightGreen,
	'b': color.LightBlue,
	'c': color.LightRed,
	'd': color.LightMagenta,
	'e': color.LightYellow,
	'f': color.LightWhite,
	'k': color.OpConcealed,
	'l': color.OpBold,
	'm': color.OpStrikethrough,
	'n': color.OpUnderscore,
	'o': color.OpItalic,
}

// AnsiFromLegacy converts legacy formatted text like "§aHello" to ANSI escaped text.
// Formats stack until reset with "§r". Unknown codes are dropped.
func AnsiFromLegacy(s string) string {
	var (
		b      strings.Builder
		styles []color.Color
		code   bool
	)
	for _, r := range s {
		if r == legacy.DefaultChar && !code {
			code = true
			continue
		}
		if code {
			code = false
			if c, ok := legacyCodes[toLower(r)]; ok {
				styles = append(styles, c)
			} else {
				styles = styles[:0] // reset
			}
			continue
		}
		if len(styles) == 0 {
			b.WriteRune(r)
			continue
		}
		b.WriteString(color.New(styles...).Sprint(string(r)))
	}
	return b.String()
}

// Ansi renders a text component as ANSI escaped text.
func Ansi(c component.Component) string {
	if c == nil {
		return ""
	}
	b := new(strings.Builder)
	if err := (&legacy.Legacy{}).Marshal(b, c); err != nil {
		return ""
	}
	return AnsiFromLegacy(b.String())
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
