package structure

import (
	"fmt"
	"strings"

	"github.com/hyperjump/manabu/internal/models"
)

// Canned cell prompts used by fallback structures.
const (
	IntroPrompt         = "Generate an introduction to the topic."
	ImprovedIntroPrompt = "Generate an improved introduction based on the feedback."
	GenerateErrorPrompt = "An error occurred while generating the structure. Please try again."
	RefineErrorPrompt   = "An error occurred while refining the structure. Please try again."
)

func cellTypeList() string {
	quoted := make([]string, len(models.CellTypes))
	for i, t := range models.CellTypes {
		quoted[i] = "'" + string(t) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

var structureSystemPrompt = `You are an expert in designing structured Jupyter notebooks for university-level students.
Generate a well-organized JSON structure for a Jupyter notebook in which concepts flow from basic intuition to advanced understanding.

General guidelines:
- The notebook name should match the given topic.
- Keep a natural progression of learning.
- Explanations may be elaborate where needed but should not be overly complex.
- Mix theory, code and visualizations.
- Keep a text-to-code ratio of roughly 3:1.
- Give every cell a content generation prompt that explains its concept clearly.

Each cell contains:
- "type": one of ` + cellTypeList() + `
- "content": the prompt used to generate the cell's content.

IMPORTANT: respond with a single valid JSON object and nothing else.

Example:
{
  "notebook_name": "Advanced Python Programming",
  "cells": [
    {"type": "multiple_paragraphs", "content": "Generate a detailed explanation of Python's decorators."},
    {"type": "bullet_points", "content": "Summarize the key features of Python decorators."}
  ]
}`

var refineSystemPrompt = `You are an expert in refining structured Jupyter notebook designs for university-level students.
Given an initial notebook structure and feedback on it, generate an improved JSON structure.

Guidelines:
- The notebook name should match the given topic.
- The JSON has a "notebook_name" field and a "cells" list.
- Each cell contains:
  - "type": one of ` + cellTypeList() + `
  - "content": the prompt used to generate the cell's content.
- The result keeps a natural progression and incorporates the feedback.

IMPORTANT: respond with a single valid JSON object and nothing else.`

const topicsSystemPrompt = `You are an expert in designing structured educational curricula for university-level students.
Generate a JSON object listing subtopics for a series of Jupyter notebooks on the given main topic.

Guidelines:
- Progress logically from fundamental concepts to advanced topics.
- Subtopics are distinct but together give a comprehensive understanding of the main topic.
- Cover both theoretical and practical aspects where applicable.
- Keep the topics engaging, relevant and tied to real-world scenarios.
- Return exactly as many topics as the requested notebook count.

Format when the notebook count is 3:
{"topics": ["Introduction to <main_topic>", "Intermediate Concepts in <main_topic>", "Advanced Applications of <main_topic>"]}

Respond with the JSON object only.`

const refineTopicsSystemPrompt = `You are an expert in refining notebook topics based on feedback.
Review the notebook topics and the feedback, then return a revised list of subtopics that:
- reflects the feedback;
- progresses from fundamental concepts to advanced topics;
- keeps subtopics distinct while covering the main topic comprehensively;
- includes theoretical and practical aspects where applicable.

Format:
{"topics": ["topic1", "topic2", "topic3"]}

Respond with the JSON object only.`

func structureUserPrompt(topic, context string) string {
	return fmt.Sprintf("Topic: %s\n\nContext:\n%s", topic, context)
}

func refineUserPrompt(topic, current, feedback string) string {
	return fmt.Sprintf("Topic: %s\n\nInitial Structure:\n%s\n\nFeedback:\n%s", topic, current, feedback)
}

func topicsUserPrompt(topic string, count int, context string) string {
	return fmt.Sprintf("Topic: %s\n\nNotebook Count: %d\n\nContext:\n%s", topic, count, context)
}

func refineTopicsUserPrompt(topics []string, feedback string, count int) string {
	return fmt.Sprintf("Initial Topics:\n%s\n\nNotebook Count: %d\n\nChange according to this feedback:\n%s",
		strings.Join(topics, "\n"), count, feedback)
}
