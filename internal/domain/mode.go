package domain

// Mode selects how the source aspect ratio is reconciled with the target.
type Mode string

const (
	// ModeCrop fills the target by clipping the longer axis.
	ModeCrop Mode = "crop"

	// ModeResize scales to fit inside the target, keeping the aspect ratio.
	ModeResize Mode = "resize"

	// ModeFit is handled like ModeResize.
	ModeFit Mode = "fit"

	// ModeBorder scales to fit and pads the rest with the background color.
	ModeBorder Mode = "border"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// IsValid returns true if the mode is a recognized value.
func (m Mode) IsValid() bool {
	switch m {
	case ModeCrop, ModeResize, ModeFit, ModeBorder:
		return true
	}
	return false
}

// ParseMode maps a mode name to a Mode. Unknown names fall back to crop.
func ParseMode(s string) Mode {
	m := Mode(s)
	if m.IsValid() {
		return m
	}
	return ModeCrop
}

// ModeFromLetter maps the single-letter URL action to a Mode.
// An empty or unknown letter is crop.
func ModeFromLetter(letter string) Mode {
	switch letter {
	case "r":
		return ModeResize
	case "b":
		return ModeBorder
	case "f":
		return ModeFit
	default:
		return ModeCrop
	}
}
