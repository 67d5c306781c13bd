// Package intent routes a question to one of the corpus document types using
// a language model. Routing is best effort: a wrong label selects a less
// fitting answer persona, never a wrong answer source of truth.
package intent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/oilwell/docbot/llm"
)

// General is the catch-all label used when no document type applies.
const General = "general"

type Classifier struct {
	llm    llm.Client
	logger *log.Logger
}

func NewClassifier(client llm.Client, logger *log.Logger) *Classifier {
	if logger == nil {
		logger = log.Default()
	}
	return &Classifier{llm: client, logger: logger}
}

// Classify asks the model to pick one of knownTypes (or "general") for the
// question. Model failures are returned as errors so the caller decides the
// fallback at a single visible site; out-of-set model output is coerced to
// "general" here and logged, since it is an anomaly rather than a fault.
func (c *Classifier) Classify(ctx context.Context, question string, knownTypes []string) (string, error) {
	if c.llm == nil {
		return "", fmt.Errorf("llm client is not configured")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question cannot be empty")
	}

	raw, err := c.llm.Generate(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: classifyPrompt(question, knownTypes)},
	})
	if err != nil {
		return "", fmt.Errorf("classify intent: %w", err)
	}

	label, ok := Coerce(raw, knownTypes)
	if !ok {
		c.logger.Printf("unrecognized intent %q for question %q, defaulting to %s", strings.TrimSpace(raw), question, General)
	}
	return label, nil
}

func classifyPrompt(question string, knownTypes []string) string {
	var sb strings.Builder
	sb.WriteString("You are an intent classification assistant for Oilwell Corporation.\n\n")
	sb.WriteString("Classify the user's question into ONE of the following categories:\n")
	sb.WriteString(strings.Join(knownTypes, ", "))
	sb.WriteString("\n\nIf no category applies, return \"general\".\n")
	sb.WriteString("Output only the category name (lowercase), nothing else.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")
	return sb.String()
}

// Coerce normalizes a raw model output to a member of knownTypes or
// "general". The second return reports whether the raw output matched.
func Coerce(raw string, knownTypes []string) (string, bool) {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Trim(label, `"'.`)

	if label == General {
		return General, true
	}
	for _, known := range knownTypes {
		if label == strings.ToLower(strings.TrimSpace(known)) {
			return label, true
		}
	}
	return General, false
}
