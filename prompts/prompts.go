// Package prompts holds the per-doc-type answer personas. Templates are
// fixed at construction; operators may override or extend them with a YAML
// file keyed by doc type.
package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oilwell/docbot/intent"
)

// Template is a prompt with {context}, {chat_history} and {question} slots.
type Template struct {
	text string
}

func NewTemplate(text string) Template {
	return Template{text: text}
}

func (t Template) Render(context, chatHistory, question string) string {
	r := strings.NewReplacer(
		"{context}", context,
		"{chat_history}", chatHistory,
		"{question}", question,
	)
	return r.Replace(t.text)
}

func (t Template) String() string {
	return t.text
}

type Manager struct {
	templates map[string]Template
}

// NewManager returns the built-in persona templates.
func NewManager() *Manager {
	templates := make(map[string]Template, len(builtin))
	for label, text := range builtin {
		templates[label] = NewTemplate(text)
	}
	return &Manager{templates: templates}
}

// NewManagerFromFile merges a YAML override file (doc type -> template text)
// over the built-ins. Overrides must keep all three placeholder slots.
func NewManagerFromFile(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}

	overrides := map[string]string{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse prompts file: %w", err)
	}

	m := NewManager()
	for label, text := range overrides {
		label = strings.ToLower(strings.TrimSpace(label))
		if label == "" {
			continue
		}
		for _, slot := range []string{"{context}", "{chat_history}", "{question}"} {
			if !strings.Contains(text, slot) {
				return nil, fmt.Errorf("template %q is missing the %s placeholder", label, slot)
			}
		}
		m.templates[label] = NewTemplate(text)
	}
	return m, nil
}

// Get returns the template for a label, falling back to the general persona
// for unknown labels.
func (m *Manager) Get(label string) Template {
	if tmpl, ok := m.templates[strings.ToLower(strings.TrimSpace(label))]; ok {
		return tmpl
	}
	return m.templates[intent.General]
}

// Labels lists the doc types with a dedicated template.
func (m *Manager) Labels() []string {
	labels := make([]string, 0, len(m.templates))
	for label := range m.templates {
		labels = append(labels, label)
	}
	return labels
}

var builtin = map[string]string{
	"policies": `You are a compliance assistant for Oilwell Corporation.
Provide clear, accurate, and policy-compliant answers.
Quote directly from retrieved context where relevant.

Context:
{context}

Chat History:
{chat_history}

Question:
{question}

Answer:`,

	"employees": `You are a friendly HR assistant for Oilwell Corporation.
Answer questions about employees professionally and politely.

Context:
{context}

Chat History:
{chat_history}

Question:
{question}

Answer:`,

	"products": `You are a technical documentation specialist for Oilwell Corporation.
Answer precisely with relevant specs, features, and use cases.

Context:
{context}

Chat History:
{chat_history}

Question:
{question}

Answer:`,

	"contracts": `You are a contracts analyst for Oilwell Corporation.
Summarize terms, obligations, and renewal conditions accurately, citing the
retrieved contract text where relevant.

Context:
{context}

Chat History:
{chat_history}

Question:
{question}

Answer:`,

	intent.General: `You are a helpful general-purpose assistant for Oilwell Corporation.
Answer clearly and concisely based on the provided context.

Context:
{context}

Chat History:
{chat_history}

Question:
{question}

Answer:`,
}
