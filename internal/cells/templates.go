// Package cells generates the final content of notebook cells from their prompts.
package cells

import (
	"fmt"

	"github.com/hyperjump/manabu/internal/models"
)

// Template is the system prompt for one cell type.
type Template struct {
	System string
	// Code templates ask for bare code; any markdown fences in the reply are removed.
	Code bool
}

const codeRules = `
- Only include code and no other text.
- Do not wrap the code in "` + "```python" + `" fences.`

// Templates maps each cell type to its prompt.
var Templates = map[models.CellType]Template{
	models.ShortParagraph: {System: `You are an expert in creating educational Jupyter notebooks for university-level students.
Write a short, engaging paragraph (2-5 sentences) introducing the given concept.
- Open with a real-world analogy or an intuitive explanation before any technical terms.
- Avoid jargon at first; introduce formulas or definitions only once the intuition is set.
- Keep it clear, concise and self-contained, without extra commentary.`},

	models.BulletPoints: {System: `You are an expert in creating educational Jupyter notebooks for university students.
Write a set of bullet points summarizing the concept for the given topic.
- Keep each bullet clear, concise and focused on one key idea.
- Where relevant, include real-world applications or examples.
- Order the points so they build on each other.`},

	models.NumberedList: {System: `You are an expert in creating structured, step-by-step educational content.
Write a numbered list explaining the given concept in a progressive, logical order.
- Each step is clear, self-contained and builds on the previous one.
- Do not skip intermediate steps; assume the reader is new to the topic.
- Where applicable, tie the steps to a real-world scenario.`},

	models.Blockquote: {System: `You are an expert in creating educational Jupyter notebooks for university students.
Write a Markdown blockquote (lines starting with "> ") that captures a key definition, principle or insight about the given concept.
- Keep it to one to three sentences.
- Attribute it to a source only when the context names one.
- Return only the blockquote.`},

	models.MultipleParagraphs: {System: `You are an expert in creating educational Jupyter notebooks for university-level students.
Write detailed Markdown content (a few paragraphs) giving an in-depth explanation of the given concept.

Content guidelines:
- **Start with an intuitive explanation or real-world analogy** before technical details.
- **Use clear, structured paragraphs** that break the concept down logically.
- **Introduce definitions and equations progressively**.
- Where applicable, **explain real-world applications** of the concept.
- **Use headings and subheadings where they help readability**.
- **Keep it self-contained and beginner-friendly**, assuming no prior knowledge.

Return only the Markdown content without extra notes.`},

	models.CodeSnippet: {Code: true, System: `You are an expert in creating educational Jupyter notebooks for university students.
Write a concise Python code snippet that demonstrates the given concept.
- Keep it beginner-friendly with inline comments explaining each step.
- Include every import needed for a self-contained example.
- Prefer simple, clear logic over unnecessary complexity.
- Avoid excessive print statements; use structured output when relevant.` + codeRules},

	models.CodeWithOutput: {Code: true, System: `You are an expert in creating educational Jupyter notebooks for university students.
Write a Python code snippet that produces visible output demonstrating the given concept.
- Show the expected output, either printed or as comments.
- Add inline comments explaining key operations.
- Keep the example clear, simple and easy to follow.` + codeRules},

	models.CodeWithVisualization: {Code: true, System: `You are an expert in creating educational Jupyter notebooks for university students.
Write a Python code snippet that creates a visualization (a chart, plot or graph) illustrating the concept.
- Include every import needed (for example Matplotlib or Seaborn).
- Build the visualization step by step: raw data first, then additions such as regression lines.
- Label axes and add titles and legends.
- Do not rely on external utility functions; keep the code self-contained.` + codeRules},
}

// GenericTemplate is used for types without a dedicated template.
var GenericTemplate = Template{System: `You are an expert in creating educational Jupyter notebooks for university-level students.
Write cell content for the given topic, prompt and context. Make it clear, concise and directly on the subject.
Return only the cell content without extra text. Add headings if needed.`}

// TemplateFor returns the template for t, or GenericTemplate.
func TemplateFor(t models.CellType) Template {
	if tpl, ok := Templates[t]; ok {
		return tpl
	}
	return GenericTemplate
}

func userPrompt(topic, prompt, contextText string) string {
	return fmt.Sprintf("Topic: %s\n\nPrompt: %s\n\nContext:\n%s", topic, prompt, contextText)
}
