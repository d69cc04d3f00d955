package query

import "fmt"

// InputInfo is the source position of an expression, as reported by the parser.
type InputInfo struct {
	Path string
	Line int
	Col  int
}

// NewInputInfo creates an InputInfo for the given position.
func NewInputInfo(path string, line, col int) InputInfo {
	return InputInfo{Path: path, Line: line, Col: col}
}

func (ii InputInfo) String() string {
	switch {
	case ii.Line == 0 && ii.Path == "":
		return "<unknown>"
	case ii.Path == "":
		return fmt.Sprintf("%d:%d", ii.Line, ii.Col)
	default:
		return fmt.Sprintf("%s:%d:%d", ii.Path, ii.Line, ii.Col)
	}
}
