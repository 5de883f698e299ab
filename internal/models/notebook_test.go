package models

import (
	"encoding/json"
	"testing"
)

func TestCellType_Valid(t *testing.T) {
	tests := []struct {
		in   CellType
		want bool
	}{
		{ShortParagraph, true},
		{NumberedList, true},
		{Blockquote, true},
		{CodeWithVisualization, true},
		{"long_paragraph", false},
		{"", false},
		{"Short_Paragraph", false},
	}
	for _, tt := range tests {
		if got := tt.in.Valid(); got != tt.want {
			t.Errorf("%q.Valid() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCellType_IsCode(t *testing.T) {
	code := map[CellType]bool{CodeSnippet: true, CodeWithOutput: true, CodeWithVisualization: true}
	for _, ct := range CellTypes {
		if got := ct.IsCode(); got != code[ct] {
			t.Errorf("%s.IsCode() = %v, want %v", ct, got, code[ct])
		}
	}
	if !DefaultCellType.Valid() || DefaultCellType.IsCode() {
		t.Error("default cell type must be a valid markup type")
	}
}

func TestParseCellType(t *testing.T) {
	if _, err := ParseCellType("bullet_points"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseCellType("table"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestNotebookStructure_JSONName(t *testing.T) {
	s := NotebookStructure{Name: "Graphs", Cells: []Cell{{Type: BulletPoints, Content: "list"}}}
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m["notebook_name"] != "Graphs" {
		t.Errorf("notebook_name = %v", m["notebook_name"])
	}
}

func TestNotebookStructure_Clone(t *testing.T) {
	s := NotebookStructure{Name: "A", Cells: []Cell{{Type: ShortParagraph, Content: "x"}}}
	c := s.Clone()
	c.Cells[0].Content = "changed"
	if s.Cells[0].Content != "x" {
		t.Error("clone shares cell storage with original")
	}
}
