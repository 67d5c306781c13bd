// Package docgen produces the markdown corpus the chatbot serves: one
// subfolder per document type, one generated file per dataset item.
package docgen

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oilwell/docbot/llm"
)

// Item is one dataset entry used to fill a generation template.
type Item map[string]string

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

const headerTemplate = `---
Company: Oilwell Corporation
Document Number: OW-DOC-%d
Classification: Internal Use Only
---

`

type Generator struct {
	llm     llm.Client
	logger  *log.Logger
	baseDir string
}

func New(client llm.Client, logger *log.Logger, baseDir string) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	if baseDir == "" {
		baseDir = "generated_docs"
	}
	return &Generator{llm: client, logger: logger, baseDir: baseDir}
}

// Run generates one markdown file per item under <baseDir>/<docType>/.
func (g *Generator) Run(ctx context.Context, template string, items []Item, docType string) error {
	if g.llm == nil {
		return fmt.Errorf("llm client is not configured")
	}
	docType = strings.ToLower(strings.TrimSpace(docType))
	if docType == "" {
		return fmt.Errorf("doc type is required")
	}

	outDir := filepath.Join(g.baseDir, docType)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for i, item := range items {
		name := displayName(item, i+1)
		g.logger.Printf("[%d/%d] generating %s document for %s", i+1, len(items), docType, name)

		prompt, err := FillTemplate(template, item)
		if err != nil {
			return fmt.Errorf("fill template for %s: %w", name, err)
		}

		content, err := g.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
		if err != nil {
			return fmt.Errorf("generate %s: %w", name, err)
		}

		header := fmt.Sprintf(headerTemplate, 1000+i+1)
		path := filepath.Join(outDir, SafeFilename(name)+".md")
		if err := os.WriteFile(path, []byte(header+content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		g.logger.Printf("saved %s", path)
	}

	g.logger.Printf("done, %d %s files in %s", len(items), docType, outDir)
	return nil
}

// FillTemplate substitutes {key} placeholders from the item. Any placeholder
// left unfilled is an error, matching the dataset rather than silently
// emitting a literal brace expression into a prompt.
func FillTemplate(template string, item Item) (string, error) {
	pairs := make([]string, 0, len(item)*2)
	for key, value := range item {
		pairs = append(pairs, "{"+key+"}", value)
	}
	filled := strings.NewReplacer(pairs...).Replace(template)

	if missing := placeholderPattern.FindString(filled); missing != "" {
		return "", fmt.Errorf("missing placeholder value: %s", missing)
	}
	return filled, nil
}

// SafeFilename converts a display name into a filesystem-safe file name.
func SafeFilename(name string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", "-", "_")
	return r.Replace(strings.TrimSpace(name))
}

func displayName(item Item, ordinal int) string {
	for _, key := range []string{"employee_name", "product_type", "title", "name"} {
		if value := strings.TrimSpace(item[key]); value != "" {
			return value
		}
	}
	return fmt.Sprintf("Document_%d", ordinal)
}
