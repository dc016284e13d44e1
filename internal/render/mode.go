package render

import (
	"fmt"
	"strings"
)

// Mode selects the plot drawn over the grid.
type Mode string

const (
	Bars Mode = "bars"
	Line Mode = "line"
)

// ParseMode accepts "bars"/"bar" and "line", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bars", "bar":
		return Bars, nil
	case "line":
		return Line, nil
	}
	return "", fmt.Errorf("unknown visualization mode %q", s)
}

func (m Mode) String() string { return string(m) }

// Title is the label shown in menus.
func (m Mode) Title() string {
	if m == Line {
		return "Line"
	}
	return "Bars"
}
