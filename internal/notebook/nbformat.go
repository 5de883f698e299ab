package notebook

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/hyperjump/manabu/internal/models"
)

// DefaultFilename is the attachment name of generated notebooks.
const DefaultFilename = "generated_notebook.ipynb"

// Document is an nbformat 4.5 notebook.
type Document struct {
	Cells         []Cell         `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// Cell is one nbformat cell. ExecutionCount and Outputs are only set on code cells.
type Cell struct {
	CellType       string         `json:"cell_type"`
	ExecutionCount *int           `json:"execution_count,omitempty"`
	ID             string         `json:"id"`
	Metadata       map[string]any `json:"metadata"`
	Outputs        *[]any         `json:"outputs,omitempty"`
	Source         []string       `json:"source"`
}

var cellNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("manabu:notebook-cell"))

// NewDocument builds a notebook from units. Cell ids are derived from name and position.
func NewDocument(name string, units []Unit) *Document {
	doc := &Document{
		Cells: make([]Cell, 0, len(units)),
		Metadata: map[string]any{
			"kernelspec": map[string]any{
				"display_name": "Python 3",
				"language":     "python",
				"name":         "python3",
			},
			"language_info": map[string]any{"name": "python"},
			"title":         name,
		},
		NBFormat:      4,
		NBFormatMinor: 5,
	}
	for i, u := range units {
		cell := Cell{
			CellType: "markdown",
			ID:       cellID(name, i),
			Metadata: map[string]any{},
			Source:   u.Source,
		}
		if u.Kind == Executable {
			cell.CellType = "code"
			cell.Outputs = &[]any{}
		}
		doc.Cells = append(doc.Cells, cell)
	}
	return doc
}

func cellID(name string, i int) string {
	id := uuid.NewSHA1(cellNamespace, []byte(name+"\x00"+strconv.Itoa(i)))
	return id.String()[:8]
}

// MarshalJSON writes code cells with an explicit null execution_count.
func (c Cell) MarshalJSON() ([]byte, error) {
	type plain Cell
	if c.CellType != "code" {
		return json.Marshal(plain(c))
	}
	return json.Marshal(struct {
		CellType       string         `json:"cell_type"`
		ExecutionCount *int           `json:"execution_count"`
		ID             string         `json:"id"`
		Metadata       map[string]any `json:"metadata"`
		Outputs        *[]any         `json:"outputs"`
		Source         []string       `json:"source"`
	}{c.CellType, c.ExecutionCount, c.ID, c.Metadata, c.Outputs, c.Source})
}

// Encode writes the document as indented JSON.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.SetEscapeHTML(false)
	return enc.Encode(d)
}

// Bytes returns the encoded document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromStructure assembles s and wraps the units in a notebook document.
func FromStructure(s models.NotebookStructure) (*Document, error) {
	units, err := Assemble(s.Cells)
	if err != nil {
		return nil, err
	}
	return NewDocument(s.Name, units), nil
}
