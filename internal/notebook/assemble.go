// Package notebook maps typed cells to executable and markup units and writes them as a
// Jupyter (nbformat 4) document.
package notebook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/manabu/internal/models"
)

// ErrInvalidCellType is returned when a cell reaching assembly has a type outside the closed
// set. Validated structures never contain one.
var ErrInvalidCellType = errors.New("invalid cell type")

// UnitKind is the kind of an output unit.
type UnitKind string

const (
	Executable UnitKind = "executable"
	Markup     UnitKind = "markup"
)

// Unit is one output cell: its kind and its source split into lines.
type Unit struct {
	Kind   UnitKind `json:"unit_type"`
	Source []string `json:"source"`
}

// Assemble converts cells, in order, to units. Code types become executable units and every
// other type becomes markup.
func Assemble(cells []models.Cell) ([]Unit, error) {
	units := make([]Unit, 0, len(cells))
	for i, c := range cells {
		if !c.Type.Valid() {
			return nil, fmt.Errorf("cell %d: %w: %q", i, ErrInvalidCellType, c.Type)
		}
		kind := Markup
		if c.Type.IsCode() {
			kind = Executable
		}
		units = append(units, Unit{Kind: kind, Source: SplitLines(c.Content)})
	}
	return units, nil
}

// SplitLines splits s after every newline, keeping the newlines, as notebook sources are stored.
func SplitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
