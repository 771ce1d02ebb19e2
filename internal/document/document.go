// Package document loads action batches from disk.
package document

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	yaml "gopkg.in/yaml.v3"

	"github.com/v0xg/snapup/internal/executor"
	"github.com/v0xg/snapup/internal/side"
)

//go:embed schema.json
var schema string

// Format selects the decoder for an action source.
type Format string

const (
	Auto Format = ""
	JSON Format = "json"
	YAML Format = "yaml"
	Side Format = "side"
)

// Document is a target URL plus the actions to run against it.
type Document struct {
	URL     string            `json:"URL" yaml:"URL"`
	Actions []executor.Action `json:"ACTIONS" yaml:"ACTIONS"`
}

// Load reads path and decodes it. Auto picks the format from the file
// extension and falls back to JSON.
func Load(path string, format Format) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read actions: %w", err)
	}
	if format == Auto {
		format = Detect(path)
	}
	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Detect guesses the format of path from its extension.
func Detect(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".side":
		return Side
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// Parse decodes data in the given format. JSON and YAML documents are
// validated against the action schema first.
func Parse(data []byte, format Format) (*Document, error) {
	switch format {
	case Side:
		url, actions, err := side.Import(data)
		if err != nil {
			return nil, err
		}
		return &Document{URL: url, Actions: actions}, nil

	case YAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
		jsonData, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal to JSON: %w", err)
		}
		return decodeJSON(jsonData)

	case JSON, Auto:
		return decodeJSON(data)

	default:
		return nil, fmt.Errorf("unknown document format %q", format)
	}
}

func decodeJSON(data []byte) (*Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}
	return &doc, nil
}

// Validate checks a JSON action document against the embedded schema.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("failed to validate schema: %w", err)
	}
	if !result.Valid() {
		var msg strings.Builder
		for _, desc := range result.Errors() {
			fmt.Fprintf(&msg, "- %s\n", desc)
		}
		return fmt.Errorf("schema validation failed:\n%s", msg.String())
	}
	return nil
}

// Marshal encodes doc as indented JSON.
func Marshal(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
