package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
	"gopkg.in/yaml.v3"
)

// document is the on-disk shape of a tour definition.
type document struct {
	ID    string        `json:"id" yaml:"id"`
	Title string        `json:"title,omitempty" yaml:"title,omitempty"`
	Steps []domain.Step `json:"steps" yaml:"steps"`
}

// Loader reads a tour definition from a single YAML or JSON file.
type Loader struct {
	Path string
}

// NewLoader creates a loader for path. The format follows the extension.
func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// Load implements ports.DefinitionLoader.
func (l *Loader) Load(ctx context.Context) (*domain.Definition, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tour file: %w", err)
	}
	def, err := Decode(data, formatOf(l.Path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Path, err)
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(l.Path), filepath.Ext(l.Path))
	}
	return def, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

// Decode parses a definition in the given format ("yaml" or "json").
// Unknown fields are rejected so that typos in step keys surface early.
func Decode(data []byte, format string) (*domain.Definition, error) {
	var doc document
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	def := domain.NewDefinition(doc.ID, doc.Steps)
	def.Title = doc.Title
	return def, nil
}

// Encode writes def in the given format ("yaml" or "json").
func Encode(w io.Writer, def *domain.Definition, format string) error {
	doc := document{ID: def.ID, Title: def.Title, Steps: def.Steps}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
