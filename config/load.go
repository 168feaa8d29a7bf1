package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stupid-simple/pkgledger/fileutils"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaName = "pkgledger-config.schema.json"

// LoadFromFile reads a JSON or YAML configuration, chosen by extension, on
// top of the defaults. The document is checked against the embedded schema
// before it is decoded.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = yamlToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	if err := ValidateJSON(raw); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateJSON runs the configuration schema against data.
func ValidateJSON(data []byte) error {
	comp := jsonschema.NewCompiler()
	if err := comp.AddResource(schemaName, bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}
	sch, err := comp.Compile(schemaName)
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON config: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("config schema validation failed: %w", err)
	}
	return nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return json.Marshal(doc)
}

func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if !fileutils.Exists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Join(fmt.Errorf("loading %s", path), err)
	}
	return nil
}
