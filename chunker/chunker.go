// Package chunker turns a folder-per-type markdown corpus into tagged,
// overlapping text windows ready for embedding.
package chunker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultWindowSize is the target chunk length in characters.
	DefaultWindowSize = 860
	// DefaultOverlap is how many trailing characters each chunk shares
	// with the next one from the same document.
	DefaultOverlap = 150
)

// ErrRootNotFound reports a corpus root that does not exist on disk.
var ErrRootNotFound = errors.New("corpus root not found")

// Chunk is one window of a source document. DocType always equals the name
// of the immediate subfolder of the corpus root the document was read from.
type Chunk struct {
	Text       string
	DocType    string
	SourcePath string
	Index      int
}

type Chunker struct {
	root    string
	window  int
	overlap int
}

func New(root string) *Chunker {
	return &Chunker{root: root, window: DefaultWindowSize, overlap: DefaultOverlap}
}

// NewWithWindow overrides the window geometry. Values <= 0 fall back to the
// defaults; an overlap >= window is clamped so progress is always made.
func NewWithWindow(root string, window, overlap int) *Chunker {
	if window <= 0 {
		window = DefaultWindowSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= window {
		overlap = window / 2
	}
	return &Chunker{root: root, window: window, overlap: overlap}
}

// Chunk walks every immediate subfolder of the root, reads all markdown files
// beneath it, and splits each into overlapping windows tagged with the
// subfolder name. A missing root is an error; a root with no subfolders
// yields an empty slice.
func (c *Chunker) Chunk() ([]Chunk, error) {
	info, err := os.Stat(c.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, c.root)
		}
		return nil, fmt.Errorf("stat corpus root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, c.root)
	}

	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("read corpus root: %w", err)
	}

	chunks := make([]Chunk, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		docType := entry.Name()
		folderChunks, err := c.chunkFolder(filepath.Join(c.root, docType), docType)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, folderChunks...)
	}

	return chunks, nil
}

func (c *Chunker) chunkFolder(dir, docType string) ([]Chunk, error) {
	chunks := make([]Chunk, 0)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		if !strings.HasSuffix(name, ".md") && !strings.HasSuffix(name, ".markdown") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		for idx, window := range SplitText(string(data), c.window, c.overlap) {
			chunks = append(chunks, Chunk{
				Text:       window,
				DocType:    docType,
				SourcePath: filepath.ToSlash(path),
				Index:      idx,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	return chunks, nil
}

// SplitText cuts content into windows of at most `window` characters with
// `overlap` characters carried over between consecutive windows. Cuts prefer
// paragraph breaks, then sentence ends, then whitespace, and only then fall
// back to a hard character cut.
func SplitText(content string, window, overlap int) []string {
	clean := strings.ReplaceAll(content, "\r\n", "\n")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return nil
	}

	// Window and overlap count runes, not bytes; a byte cut could land
	// inside a multibyte sequence and produce invalid UTF-8.
	runes := []rune(clean)
	if len(runes) <= window {
		return []string{clean}
	}

	windows := make([]string, 0)
	start := 0
	for start < len(runes) {
		end := start + window
		if end >= len(runes) {
			windows = append(windows, strings.TrimSpace(string(runes[start:])))
			break
		}

		cut := boundaryCut(runes[start:end])
		piece := strings.TrimSpace(string(runes[start : start+cut]))
		if piece != "" {
			windows = append(windows, piece)
		}

		next := start + cut - overlap
		if next <= start {
			next = start + cut
		}
		start = next
	}

	return windows
}

// boundaryCut finds the best place to cut within a window: the last paragraph
// break, failing that the last sentence end, failing that the last whitespace
// within the trailing half. Returns the window length when nothing better
// exists.
func boundaryCut(window []rune) int {
	half := len(window) / 2

	for i := len(window) - 2; i > half; i-- {
		if window[i] == '\n' && window[i+1] == '\n' {
			return i
		}
	}
	for i := len(window) - 2; i > half; i-- {
		end := window[i]
		if (end == '.' || end == '!' || end == '?') && (window[i+1] == ' ' || window[i+1] == '\n') {
			return i + 1
		}
	}
	for i := len(window) - 1; i > half; i-- {
		if window[i] == ' ' || window[i] == '\t' || window[i] == '\n' {
			return i
		}
	}
	return len(window)
}

// DocTypes reports the distinct doc types in a chunk slice.
func DocTypes(chunks []Chunk) []string {
	seen := make(map[string]struct{}, 4)
	types := make([]string, 0, 4)
	for _, chunk := range chunks {
		if _, ok := seen[chunk.DocType]; ok {
			continue
		}
		seen[chunk.DocType] = struct{}{}
		types = append(types, chunk.DocType)
	}
	return types
}
