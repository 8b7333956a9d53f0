package highlight

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultColor is used when a reference carries no usable colour.
const DefaultColor = "#f59e0b"

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidColor reports whether c is a #rgb or #rrggbb colour.
func ValidColor(c string) bool {
	return hexColor.MatchString(c)
}

// Style returns the inline style for a highlight in the given colour: a
// translucent background with a solid underline.
func Style(color string) string {
	c := expandColor(color)
	return fmt.Sprintf("background-color: %s33; border-bottom: 2px solid %s; cursor: pointer", c, c)
}

// expandColor normalizes color to lower-case #rrggbb so that an alpha byte
// can be appended.
func expandColor(color string) string {
	if !ValidColor(color) {
		color = DefaultColor
	}
	color = strings.ToLower(color)
	if len(color) == 4 {
		return "#" + strings.Repeat(color[1:2], 2) + strings.Repeat(color[2:3], 2) + strings.Repeat(color[3:4], 2)
	}
	return color
}
