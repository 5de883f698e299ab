// Package cli formats command output for the manabu CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/manabu/internal/indexer"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat returns the format named by s; anything but "json" is text.
func ParseOutputFormat(s string) OutputFormat {
	if strings.EqualFold(s, string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteDocuments writes the indexed documents, marking selected ones.
func WriteDocuments(w io.Writer, docs []models.Document, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []models.Document{}
		}
		return writeJSON(w, map[string]any{"documents": docs})
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents indexed.")
		return nil
	}
	for _, d := range docs {
		mark := " "
		if d.Selected {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s (%d chunks)\n", mark, d.Name, d.Chunks)
	}
	return nil
}

// WriteIndexResults writes one line per indexed file.
func WriteIndexResults(w io.Writer, results []*indexer.Result, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []*indexer.Result{}
		}
		return writeJSON(w, map[string]any{"results": results})
	}
	for _, r := range results {
		fmt.Fprintln(w, r.Message)
	}
	return nil
}

// WriteTopics writes a numbered topic list.
func WriteTopics(w io.Writer, topics []string, format OutputFormat) error {
	if format == OutputJSON {
		if topics == nil {
			topics = []string{}
		}
		return writeJSON(w, map[string]any{"topics": topics})
	}
	for i, t := range topics {
		fmt.Fprintf(w, "%d. %s\n", i+1, t)
	}
	return nil
}

// WriteStructure writes a notebook structure. Text output shows each cell's type and the
// first words of its content.
func WriteStructure(w io.Writer, s models.NotebookStructure, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]any{"structure": s})
	}
	fmt.Fprintf(w, "%s\n%s\n", s.Name, strings.Repeat("=", len(s.Name)))
	for i, c := range s.Cells {
		fmt.Fprintf(w, "%2d. [%s] %s\n", i+1, c.Type, utils.TruncateWords(c.Content, 20))
	}
	return nil
}

// WriteStatus writes key/value status information in sorted key order for text output.
func WriteStatus(w io.Writer, status map[string]any, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-20s %v\n", k+":", status[k])
	}
	return nil
}
