package models

import "fmt"

// CellType is the closed set of cell kinds a notebook structure may contain.
type CellType string

const (
	ShortParagraph        CellType = "short_paragraph"
	BulletPoints          CellType = "bullet_points"
	NumberedList          CellType = "numbered_list"
	Blockquote            CellType = "blockquote"
	MultipleParagraphs    CellType = "multiple_paragraphs"
	CodeSnippet           CellType = "code_snippet"
	CodeWithOutput        CellType = "code_with_output"
	CodeWithVisualization CellType = "code_with_visualization"

	// DefaultCellType replaces missing or unknown types during validation.
	DefaultCellType = ShortParagraph
)

// CellTypes lists every valid cell type in prompt order.
var CellTypes = []CellType{
	ShortParagraph,
	BulletPoints,
	NumberedList,
	Blockquote,
	MultipleParagraphs,
	CodeSnippet,
	CodeWithOutput,
	CodeWithVisualization,
}

// Valid reports whether t is a member of the closed set.
func (t CellType) Valid() bool {
	for _, c := range CellTypes {
		if c == t {
			return true
		}
	}
	return false
}

// IsCode reports whether cells of type t become executable units.
func (t CellType) IsCode() bool {
	switch t {
	case CodeSnippet, CodeWithOutput, CodeWithVisualization:
		return true
	}
	return false
}

// ParseCellType returns t as a CellType, or an error if it is not in the closed set.
func ParseCellType(s string) (CellType, error) {
	t := CellType(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid cell type: %q", s)
	}
	return t, nil
}

// Cell is one typed unit of notebook content. Content holds the generation prompt
// until Generated is set, and the final text afterwards.
type Cell struct {
	Type      CellType `json:"type"`
	Content   string   `json:"content"`
	Generated bool     `json:"generated,omitempty"`
	Loading   bool     `json:"loading,omitempty"`
}

// NotebookStructure is the ordered description of a notebook before and after content generation.
type NotebookStructure struct {
	Name  string `json:"notebook_name"`
	Cells []Cell `json:"cells"`
}

// Clone returns a deep copy of s.
func (s NotebookStructure) Clone() NotebookStructure {
	out := NotebookStructure{Name: s.Name, Cells: make([]Cell, len(s.Cells))}
	copy(out.Cells, s.Cells)
	return out
}
