package notebook

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/manabu/internal/models"
)

func TestAssemble(t *testing.T) {
	cells := []models.Cell{
		{Type: models.ShortParagraph, Content: "Intro text."},
		{Type: models.CodeSnippet, Content: "import math\nprint(math.pi)\n"},
		{Type: models.BulletPoints, Content: "- a\n- b"},
		{Type: models.CodeWithVisualization, Content: "plot()"},
		{Type: models.Blockquote, Content: ""},
	}
	units, err := Assemble(cells)
	if err != nil {
		t.Fatal(err)
	}
	want := []Unit{
		{Kind: Markup, Source: []string{"Intro text."}},
		{Kind: Executable, Source: []string{"import math\n", "print(math.pi)\n"}},
		{Kind: Markup, Source: []string{"- a\n", "- b"}},
		{Kind: Executable, Source: []string{"plot()"}},
		{Kind: Markup, Source: []string{}},
	}
	if !reflect.DeepEqual(units, want) {
		t.Errorf("Assemble = %+v\nwant %+v", units, want)
	}
}

func TestAssemble_everyTypeMaps(t *testing.T) {
	for _, typ := range models.CellTypes {
		units, err := Assemble([]models.Cell{{Type: typ, Content: "x"}})
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		if (units[0].Kind == Executable) != typ.IsCode() {
			t.Errorf("%s mapped to %s", typ, units[0].Kind)
		}
	}
}

func TestAssemble_invalidType(t *testing.T) {
	_, err := Assemble([]models.Cell{{Type: models.ShortParagraph}, {Type: "long_paragraph"}})
	if !errors.Is(err, ErrInvalidCellType) {
		t.Fatalf("err = %v", err)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"one", []string{"one"}},
		{"a\nb", []string{"a\n", "b"}},
		{"a\nb\n", []string{"a\n", "b\n"}},
		{"a\n\nb", []string{"a\n", "\n", "b"}},
		{"a\n", []string{"a\n"}},
		{"a\n\n", []string{"a\n", "\n"}},
		{"\n", []string{"\n"}},
	}
	for _, tt := range tests {
		got := SplitLines(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitLines(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if joined := strings.Join(got, ""); joined != tt.in {
			t.Errorf("SplitLines(%q) joins to %q", tt.in, joined)
		}
	}
}

func TestFromStructure_nbformat(t *testing.T) {
	doc, err := FromStructure(models.NotebookStructure{
		Name: "Sorting",
		Cells: []models.Cell{
			{Type: models.MultipleParagraphs, Content: "# Sorting\nWhy order matters."},
			{Type: models.CodeWithOutput, Content: "print(sorted([3, 1, 2]))"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	var parsed struct {
		NBFormat      int `json:"nbformat"`
		NBFormatMinor int `json:"nbformat_minor"`
		Metadata      map[string]any
		Cells         []map[string]json.RawMessage
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.NBFormat != 4 || parsed.NBFormatMinor != 5 {
		t.Errorf("version = %d.%d", parsed.NBFormat, parsed.NBFormatMinor)
	}
	if len(parsed.Cells) != 2 {
		t.Fatalf("cells = %d", len(parsed.Cells))
	}
	md, code := parsed.Cells[0], parsed.Cells[1]
	if string(md["cell_type"]) != `"markdown"` {
		t.Errorf("first cell_type = %s", md["cell_type"])
	}
	if _, ok := md["outputs"]; ok {
		t.Error("markdown cell has outputs")
	}
	if string(code["cell_type"]) != `"code"` || string(code["execution_count"]) != "null" || string(code["outputs"]) != "[]" {
		t.Errorf("code cell = %v", code)
	}
	var id string
	_ = json.Unmarshal(md["id"], &id)
	if len(id) != 8 {
		t.Errorf("cell id = %q", id)
	}

	again, _ := FromStructure(models.NotebookStructure{Name: "Sorting", Cells: []models.Cell{{Type: models.MultipleParagraphs}}})
	if again.Cells[0].ID != doc.Cells[0].ID {
		t.Error("cell ids should be stable for the same name and position")
	}
}
