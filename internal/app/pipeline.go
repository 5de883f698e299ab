package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/notebook"
)

// Notebook is the outcome of a full generation run.
type Notebook struct {
	Structure models.NotebookStructure
	Document  *notebook.Document
	// Fallback is set when the structure step gave up and returned the minimal structure.
	Fallback bool
}

// GenerateNotebook drafts a structure for topic, generates every cell and assembles the result.
func (c *Components) GenerateNotebook(ctx context.Context, topic string) (*Notebook, error) {
	res, err := c.Structure.Generate(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("generate structure: %w", err)
	}
	if res.Fallback {
		c.Logger.Warn("using fallback structure", zap.String("topic", topic), zap.Error(res.Reason))
	}
	filled, err := c.Cells.GenerateAll(ctx, res.Structure)
	if err != nil {
		return nil, fmt.Errorf("generate cells: %w", err)
	}
	doc, err := notebook.FromStructure(filled)
	if err != nil {
		return nil, fmt.Errorf("assemble notebook: %w", err)
	}
	return &Notebook{Structure: filled, Document: doc, Fallback: res.Fallback}, nil
}

// WriteNotebook encodes doc to path, creating parent directories.
func WriteNotebook(path string, doc *notebook.Document) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := doc.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write notebook: %w", err)
	}
	return f.Close()
}
