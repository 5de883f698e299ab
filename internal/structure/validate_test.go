package structure

import (
	"errors"
	"reflect"
	"testing"

	"github.com/hyperjump/manabu/internal/models"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      models.NotebookStructure
		coercions int
	}{
		{
			name: "well formed",
			raw:  `{"notebook_name":"Photosynthesis","cells":[{"type":"bullet_points","content":"List the stages."},{"type":"code_snippet","content":"Simulate it."}]}`,
			want: models.NotebookStructure{Name: "Photosynthesis", Cells: []models.Cell{
				{Type: models.BulletPoints, Content: "List the stages."},
				{Type: models.CodeSnippet, Content: "Simulate it."},
			}},
		},
		{
			name: "missing name and content",
			raw:  `{"cells":[{"type":"numbered_list"}]}`,
			want: models.NotebookStructure{Name: "T Notebook", Cells: []models.Cell{
				{Type: models.NumberedList, Content: ""},
			}},
			coercions: 2,
		},
		{
			name: "unknown and missing types coerced",
			raw:  `{"notebook_name":"N","cells":[{"type":"long_paragraph","content":"a"},{"content":"b"},{"type":7,"content":"c"}]}`,
			want: models.NotebookStructure{Name: "N", Cells: []models.Cell{
				{Type: models.DefaultCellType, Content: "a"},
				{Type: models.DefaultCellType, Content: "b"},
				{Type: models.DefaultCellType, Content: "c"},
			}},
			coercions: 3,
		},
		{
			name: "non-object cells dropped",
			raw:  `{"notebook_name":"N","cells":["oops",{"type":"blockquote","content":"q"}]}`,
			want: models.NotebookStructure{Name: "N", Cells: []models.Cell{
				{Type: models.Blockquote, Content: "q"},
			}},
			coercions: 1,
		},
		{
			name: "empty object gets default name and cell",
			raw:  `{}`,
			want: models.NotebookStructure{Name: "T Notebook", Cells: []models.Cell{
				{Type: models.DefaultCellType, Content: IntroPrompt},
			}},
			coercions: 3,
		},
		{
			name: "blank name replaced",
			raw:  "  {\"notebook_name\":\"  \",\"cells\":[{\"type\":\"short_paragraph\",\"content\":\"x\"}]}\n",
			want: models.NotebookStructure{Name: "T Notebook", Cells: []models.Cell{
				{Type: models.ShortParagraph, Content: "x"},
			}},
			coercions: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, coercions, err := Validate(tt.raw, "T")
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Validate = %+v, want %+v", got, tt.want)
			}
			if len(coercions) != tt.coercions {
				t.Errorf("coercions = %v, want %d", coercions, tt.coercions)
			}
		})
	}
}

func TestValidate_unknownTypeNeverFails(t *testing.T) {
	for _, typ := range []string{"", "code", "SHORT_PARAGRAPH", "table", "markdown", "short paragraph"} {
		raw := `{"notebook_name":"N","cells":[{"type":"` + typ + `","content":"x"}]}`
		got, _, err := Validate(raw, "T")
		if err != nil {
			t.Fatalf("type %q: %v", typ, err)
		}
		if got.Cells[0].Type != models.DefaultCellType {
			t.Errorf("type %q coerced to %q", typ, got.Cells[0].Type)
		}
	}
}

func TestValidate_malformed(t *testing.T) {
	for _, raw := range []string{"", "not json", "[1,2]", "null", `"string"`, `{"notebook_name":`} {
		if _, _, err := Validate(raw, "T"); !errors.Is(err, ErrMalformed) {
			t.Errorf("Validate(%q) err = %v", raw, err)
		}
	}
}

func TestValidateTopics(t *testing.T) {
	got, err := ValidateTopics(`{"topics":["a","b"]}`)
	if err != nil || !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("ValidateTopics = %v, %v", got, err)
	}
	for _, raw := range []string{"x", `{}`, `{"topics":"a"}`, `{"topics":[1]}`, `[]`} {
		if _, err := ValidateTopics(raw); !errors.Is(err, ErrMalformed) {
			t.Errorf("ValidateTopics(%q) err = %v", raw, err)
		}
	}
}

func TestFallbackTopics(t *testing.T) {
	got := FallbackTopics("Go", 3)
	want := []string{"Go Part 1", "Go Part 2", "Go Part 3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FallbackTopics = %v", got)
	}
	if got := FallbackTopics("Go", 0); len(got) != 0 {
		t.Errorf("FallbackTopics(0) = %v", got)
	}
}
