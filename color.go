package mscfb

// Color of a node in the red-black sibling tree.
type Color int

const (
	Red Color = iota
	Black
)

// ColorFromByte reports false for bytes other than 0 and 1. The color is
// only checked in strict mode; the tree is never rebalanced.
func ColorFromByte(b byte) (Color, bool) {
	switch b {
	case COLOR_RED:
		return Red, true
	case COLOR_BLACK:
		return Black, true
	default:
		return Black, false
	}
}
