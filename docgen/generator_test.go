package docgen

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oilwell/docbot/llm"
)

type stubLLM struct {
	content string
}

func (s *stubLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	return s.content, nil
}

var _ llm.Client = (*stubLLM)(nil)

func TestSafeFilename(t *testing.T) {
	cases := map[string]string{
		"Jane Smith":                       "Jane_Smith",
		"Supply Agreement - ABC Co.":       "Supply_Agreement___ABC_Co.",
		"a/b":                              "a_b",
		"  trimmed  name ":                 "trimmed__name",
		"Centrifugal Pump - Multistage":    "Centrifugal_Pump___Multistage",
	}
	for input, want := range cases {
		if got := SafeFilename(input); got != want {
			t.Fatalf("SafeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFillTemplate(t *testing.T) {
	filled, err := FillTemplate("Name: {employee_name}, Dept: {department}", Item{
		"employee_name": "Jane Smith",
		"department":    "Safety",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filled != "Name: Jane Smith, Dept: Safety" {
		t.Fatalf("unexpected fill: %q", filled)
	}
}

func TestFillTemplateMissingPlaceholder(t *testing.T) {
	if _, err := FillTemplate("Name: {employee_name}", Item{"department": "Safety"}); err == nil {
		t.Fatal("expected error for unfilled placeholder")
	}
}

func TestRunWritesTypedMarkdownFiles(t *testing.T) {
	baseDir := t.TempDir()
	gen := New(&stubLLM{content: "# Employee Profile\n\nGenerated body."}, log.New(io.Discard, "", 0), baseDir)

	items := []Item{
		{"employee_name": "Jane Smith"},
		{"employee_name": "John Doe"},
	}
	if err := gen.Run(context.Background(), "Profile for {employee_name}", items, "employees"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"Jane_Smith.md", "John_Doe.md"} {
		path := filepath.Join(baseDir, "employees", name)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected generated file %s: %v", path, err)
		}
		content := string(data)
		if !strings.HasPrefix(content, "---\n") || !strings.Contains(content, "OW-DOC-10") {
			t.Fatalf("missing front-matter header in %s: %q", name, content[:min(len(content), 80)])
		}
		if !strings.Contains(content, "Generated body.") {
			t.Fatalf("missing generated body in %s", name)
		}
	}
}

func TestRunRequiresDocType(t *testing.T) {
	gen := New(&stubLLM{content: "x"}, log.New(io.Discard, "", 0), t.TempDir())
	if err := gen.Run(context.Background(), "t", []Item{{"name": "a"}}, "  "); err == nil {
		t.Fatal("expected error for empty doc type")
	}
}

func TestPresetsAreComplete(t *testing.T) {
	for _, docType := range PresetTypes() {
		template, items, ok := Preset(docType)
		if !ok {
			t.Fatalf("missing preset %q", docType)
		}
		if len(items) == 0 {
			t.Fatalf("preset %q has no dataset", docType)
		}
		for _, item := range items {
			if _, err := FillTemplate(template, item); err != nil {
				t.Fatalf("preset %q item %v does not fill its template: %v", docType, item, err)
			}
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
