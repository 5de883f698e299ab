// Package structure turns (topic, context) into a validated notebook structure and a topic
// list into subtopics, with bounded retries and a deterministic fallback.
package structure

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/manabu/internal/models"
)

// ErrMalformed marks a generation reply that could not be parsed into the expected schema.
var ErrMalformed = errors.New("malformed generation response")

// Coercion records one default applied during validation. Cell is -1 for structure-level fields.
type Coercion struct {
	Cell  int    `json:"cell"`
	Field string `json:"field"`
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
}

func (c Coercion) String() string {
	if c.Cell < 0 {
		return fmt.Sprintf("%s: %q -> %q", c.Field, c.From, c.To)
	}
	return fmt.Sprintf("cells[%d].%s: %q -> %q", c.Cell, c.Field, c.From, c.To)
}

// DefaultName is the notebook name used when none was generated.
func DefaultName(topic string) string {
	return topic + " Notebook"
}

// Validate parses raw as a notebook structure. Only an unparseable reply (not a JSON object)
// is an error; every other defect is coerced and reported:
//   - a missing or empty notebook_name becomes "{topic} Notebook";
//   - a missing or non-list cells becomes empty, and non-object cells are dropped;
//   - a missing or unknown cell type becomes the default type;
//   - a missing or non-string content becomes "".
//
// A structure left with no cells receives the introductory default cell, so the result
// always has a name and at least one cell.
func Validate(raw, topic string) (models.NotebookStructure, []Coercion, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err != nil || obj == nil {
		return models.NotebookStructure{}, nil, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	var coercions []Coercion
	s := models.NotebookStructure{Name: DefaultName(topic)}
	if name, ok := stringField(obj, "notebook_name"); ok && strings.TrimSpace(name) != "" {
		s.Name = name
	} else {
		coercions = append(coercions, Coercion{Cell: -1, Field: "notebook_name", From: name, To: s.Name})
	}

	var cells []json.RawMessage
	if rawCells, ok := obj["cells"]; !ok || json.Unmarshal(rawCells, &cells) != nil {
		coercions = append(coercions, Coercion{Cell: -1, Field: "cells", From: string(rawCells), To: "[]"})
		cells = nil
	}
	for i, rc := range cells {
		var cellObj map[string]json.RawMessage
		if err := json.Unmarshal(rc, &cellObj); err != nil || cellObj == nil {
			coercions = append(coercions, Coercion{Cell: i, Field: "cell", From: string(rc), To: "dropped"})
			continue
		}
		cell := models.Cell{Type: models.DefaultCellType}
		typ, _ := stringField(cellObj, "type")
		if t := models.CellType(typ); t.Valid() {
			cell.Type = t
		} else {
			coercions = append(coercions, Coercion{Cell: i, Field: "type", From: typ, To: string(models.DefaultCellType)})
		}
		content, ok := stringField(cellObj, "content")
		if !ok {
			coercions = append(coercions, Coercion{Cell: i, Field: "content", To: ""})
		}
		cell.Content = content
		s.Cells = append(s.Cells, cell)
	}

	if len(s.Cells) == 0 {
		s.Cells = []models.Cell{{Type: models.DefaultCellType, Content: IntroPrompt}}
		coercions = append(coercions, Coercion{Cell: 0, Field: "cell", To: IntroPrompt})
	}
	return s, coercions, nil
}

// ValidateTopics parses raw as {"topics": [string...]}.
func ValidateTopics(raw string) ([]string, error) {
	var obj struct {
		Topics *[]json.RawMessage `json:"topics"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}
	if obj.Topics == nil {
		return nil, fmt.Errorf("%w: topics list missing", ErrMalformed)
	}
	topics := make([]string, 0, len(*obj.Topics))
	for i, rt := range *obj.Topics {
		var t string
		if err := json.Unmarshal(rt, &t); err != nil {
			return nil, fmt.Errorf("%w: topics[%d] is not a string", ErrMalformed, i)
		}
		topics = append(topics, t)
	}
	return topics, nil
}

// stringField returns obj[key] when it is a JSON string.
func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
