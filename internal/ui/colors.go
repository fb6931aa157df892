package ui

import (
	"os"

	"github.com/fatih/color"
)

// ColorMode is the tri-state color decision: forced on, forced off, or
// left to the terminal detection fatih/color does on its own.
type ColorMode int

const (
	ColorModeUndefined ColorMode = iota + 1
	ColorModeSuppressed
	ColorModeForced
)

// GetColorModeFromEnv reads FORCE_COLOR, following the value coercion of
// the supports-color package: "0"/"false" suppress, "1"/"2"/"3"/"true"
// force (the numeric support levels all collapse to on/off here).
func GetColorModeFromEnv() ColorMode {
	switch os.Getenv("FORCE_COLOR") {
	case "false", "0":
		return ColorModeSuppressed
	case "true", "1", "2", "3":
		return ColorModeForced
	default:
		return ColorModeUndefined
	}
}

// applyColorMode pushes the decision into the color package's global
// switch and returns the mode that actually ended up in effect.
// ColorModeUndefined leaves color.NoColor at the default it derived
// from isatty and NO_COLOR.
func applyColorMode(colorMode ColorMode) ColorMode {
	switch colorMode {
	case ColorModeForced:
		color.NoColor = false
	case ColorModeSuppressed:
		color.NoColor = true
	}

	if color.NoColor {
		return ColorModeSuppressed
	}
	return ColorModeForced
}
