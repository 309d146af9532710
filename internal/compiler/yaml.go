package compiler

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sooq/internal/schema"
)

// ParseYAML decodes a YAML mapping document. Unknown keys are rejected.
func ParseYAML(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse mapping yaml: %w", err)
	}
	return &doc, nil
}

// LoadYAML reads and compiles a YAML mapping file.
func LoadYAML(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	doc, err := ParseYAML(data)
	if err != nil {
		return nil, err
	}
	return Compile(doc)
}

// Load compiles a mapping from path, choosing the format by extension.
// Directories are loaded as CUE packages.
func Load(path string) (*schema.Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("mapping not found: %w", err)
	}
	if info.IsDir() {
		return LoadCUE(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return LoadCUE(path)
	case ".yaml", ".yml":
		return LoadYAML(path)
	}
	return nil, fmt.Errorf("unsupported mapping format %q", filepath.Ext(path))
}
