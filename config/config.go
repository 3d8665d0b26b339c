package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Config holds all configuration
type Config struct {
	Models    []Model        `hcl:"model,block"`
	Platforms []Platform     `hcl:"platform,block"`
	Variables []Variable     `hcl:"variable,block"`
	Storage   *StorageConfig `hcl:"storage,block"`
	Settings  *Settings      `hcl:"settings,block"`

	// ResolvedVars holds the resolved variable values for runtime use
	ResolvedVars map[string]cty.Value `hcl:"-"`
}

func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadAndValidate loads the config and validates all components
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all config components are valid
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model block is required")
	}

	for _, m := range c.Models {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("model '%s': %w", m.Name, err)
		}
	}

	for _, v := range c.Variables {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variable '%s': %w", v.Name, err)
		}
	}

	if len(c.Platforms) == 0 {
		return fmt.Errorf("at least one platform block is required")
	}

	seen := make(map[string]bool)
	for _, p := range c.Platforms {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("platform '%s': %w", p.Name, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("platform '%s': duplicate platform name", p.Name)
		}
		seen[p.Name] = true
	}

	if c.Storage != nil {
		if err := c.Storage.Validate(); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}

	return nil
}

func LoadFile(filename string) (*Config, error) {
	return loadFromFiles([]string{filename})
}

func LoadDir(dir string) (*Config, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, err
	}
	return loadFromFiles(files)
}

// parsedBlocks holds all blocks extracted from a file in one pass
type parsedBlocks struct {
	Variables []*hcl.Block
	Models    []*hcl.Block
	Platforms []*hcl.Block
	Storage   []*hcl.Block
	Settings  []*hcl.Block
}

// loadFromFiles implements staged loading: variables → everything else
func loadFromFiles(files []string) (*Config, error) {
	parser := hclparse.NewParser()
	var allParsedBlocks []parsedBlocks

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("[1] parse %s: %w", file, diags)
		}

		// Extract all known block types in one PartialContent call
		content, _, diags := hclFile.Body.PartialContent(&hcl.BodySchema{
			Blocks: []hcl.BlockHeaderSchema{
				{Type: "variable", LabelNames: []string{"name"}},
				{Type: "model", LabelNames: []string{"name"}},
				{Type: "platform", LabelNames: []string{"name"}},
				{Type: "storage"},
				{Type: "settings"},
			},
		})
		if diags.HasErrors() {
			return nil, fmt.Errorf("[2] partial content %s: %w", file, diags)
		}

		var pb parsedBlocks
		for _, block := range content.Blocks {
			switch block.Type {
			case "variable":
				pb.Variables = append(pb.Variables, block)
			case "model":
				pb.Models = append(pb.Models, block)
			case "platform":
				pb.Platforms = append(pb.Platforms, block)
			case "storage":
				pb.Storage = append(pb.Storage, block)
			case "settings":
				pb.Settings = append(pb.Settings, block)
			}
		}
		allParsedBlocks = append(allParsedBlocks, pb)
	}

	// Stage 1: Load variables (no context needed)
	var allVars []Variable
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Variables {
			var v Variable
			v.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, nil, &v)
			if diags.HasErrors() {
				return nil, fmt.Errorf("[3] decode variable %s: %w", v.Name, diags)
			}
			allVars = append(allVars, v)
		}
	}

	varsCtx, resolvedVars := buildVarsContext(allVars)

	// Stage 2: Load everything else with vars context
	cfg := &Config{
		Variables:    allVars,
		ResolvedVars: resolvedVars,
	}

	for _, pb := range allParsedBlocks {
		for _, block := range pb.Models {
			var m Model
			m.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, varsCtx, &m)
			if diags.HasErrors() {
				return nil, fmt.Errorf("[4] decode model %s: %w", m.Name, diags)
			}
			cfg.Models = append(cfg.Models, m)
		}

		for _, block := range pb.Platforms {
			var p Platform
			p.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, varsCtx, &p)
			if diags.HasErrors() {
				return nil, fmt.Errorf("[5] decode platform %s: %w", p.Name, diags)
			}
			p.Defaults()
			cfg.Platforms = append(cfg.Platforms, p)
		}

		for _, block := range pb.Storage {
			if cfg.Storage != nil {
				return nil, fmt.Errorf("duplicate storage block")
			}
			var s StorageConfig
			diags := gohcl.DecodeBody(block.Body, varsCtx, &s)
			if diags.HasErrors() {
				return nil, fmt.Errorf("[6] decode storage: %w", diags)
			}
			cfg.Storage = &s
		}

		for _, block := range pb.Settings {
			if cfg.Settings != nil {
				return nil, fmt.Errorf("duplicate settings block")
			}
			var s Settings
			diags := gohcl.DecodeBody(block.Body, varsCtx, &s)
			if diags.HasErrors() {
				return nil, fmt.Errorf("[7] decode settings: %w", diags)
			}
			cfg.Settings = &s
		}
	}

	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{}
	}
	cfg.Storage.Defaults()

	if cfg.Settings == nil {
		cfg.Settings = &Settings{}
	}
	cfg.Settings.Defaults()

	return cfg, nil
}

// Platform returns the platform block with the given name.
func (c *Config) Platform(name string) (*Platform, bool) {
	for i := range c.Platforms {
		if c.Platforms[i].Name == name {
			return &c.Platforms[i], true
		}
	}
	return nil, false
}

// Model returns the model block with the given name.
func (c *Config) Model(name string) (*Model, bool) {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i], true
		}
	}
	return nil, false
}

// buildVarsContext creates context with just vars
func buildVarsContext(vars []Variable) (*hcl.EvalContext, map[string]cty.Value) {
	varsMap := make(map[string]cty.Value)
	fileVars, _ := LoadVarsFromFile()
	for _, v := range vars {
		if val, ok := fileVars[v.Name]; ok {
			varsMap[v.Name] = cty.StringVal(val)
		} else if v.Default != "" {
			varsMap[v.Name] = cty.StringVal(v.Default)
		} else {
			varsMap[v.Name] = cty.StringVal("")
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"vars": cty.ObjectVal(varsMap),
		},
	}, varsMap
}
