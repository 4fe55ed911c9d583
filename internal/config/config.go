package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level bankpipe.yaml configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Git       GitConfig       `yaml:"git"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Providers ProviderList    `yaml:"providers"`
}

// PathsConfig names the directories the pipeline moves files between,
// relative to the ledger repository root.
type PathsConfig struct {
	Import       string `yaml:"import"`
	Pending      string `yaml:"pending"`
	Done         string `yaml:"done"`
	Unrecognized string `yaml:"unrecognized"`
	Rules        string `yaml:"rules"`
	Ledger       string `yaml:"ledger"`
	Journal      string `yaml:"journal"`
}

// GitConfig controls authorship of pipeline commits.
type GitConfig struct {
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// WorkspaceConfig controls stale-workspace maintenance.
type WorkspaceConfig struct {
	MaxAgeHours int `yaml:"max_age_hours"`
}

// Provider is a named institution profile: an ordered list of detection
// rules plus a raw-to-normalized currency map.
type Provider struct {
	Name       string            `yaml:"-"`
	Currencies map[string]string `yaml:"currencies"`
	Rules      []DetectionRule   `yaml:"detect"`
}

// DetectionRule fingerprints one statement export format. Rules are tried
// in declared order; the order is part of the contract.
type DetectionRule struct {
	FilenamePattern string               `yaml:"filename_pattern"`
	Header          string               `yaml:"header"`
	CurrencyField   string               `yaml:"currency_field"`
	SkipRows        int                  `yaml:"skip_rows"`
	Delimiter       string               `yaml:"delimiter"`
	RenameTemplate  string               `yaml:"rename_template"`
	Extract         []MetadataExtraction `yaml:"extract"`
}

// MetadataExtraction pulls a structured value out of the metadata rows
// preceding the header (account number, statement period, balances).
type MetadataExtraction struct {
	Field     string `yaml:"field"`
	Row       int    `yaml:"row"`
	Column    int    `yaml:"column"`
	Normalize string `yaml:"normalize"`
}

// NormalizeSpacesToDashes replaces runs of whitespace with a single hyphen.
const NormalizeSpacesToDashes = "spaces-to-dashes"

// ProviderList preserves the declaration order of the providers mapping.
// A plain map would lose it, and detection is first-match-wins.
type ProviderList []Provider

// UnmarshalYAML decodes the providers mapping in document order.
func (p *ProviderList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("providers: expected a mapping, got %s", node.Tag)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var prov Provider
		if err := node.Content[i+1].Decode(&prov); err != nil {
			return fmt.Errorf("provider %s: %w", node.Content[i].Value, err)
		}
		prov.Name = node.Content[i].Value
		*p = append(*p, prov)
	}
	return nil
}

// MarshalYAML writes the providers back as a mapping in declared order.
func (p ProviderList) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, prov := range p {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: prov.Name}
		var value yaml.Node
		if err := value.Encode(prov); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, key, &value)
	}
	return node, nil
}

// Load reads and validates a bankpipe.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields, naming the offending field on failure.
func (c *Config) Validate() error {
	paths := []struct{ name, value string }{
		{"paths.import", c.Paths.Import},
		{"paths.pending", c.Paths.Pending},
		{"paths.done", c.Paths.Done},
		{"paths.unrecognized", c.Paths.Unrecognized},
		{"paths.rules", c.Paths.Rules},
		{"paths.ledger", c.Paths.Ledger},
		{"paths.journal", c.Paths.Journal},
	}
	for _, p := range paths {
		if p.value == "" {
			return fmt.Errorf("config: %s is required", p.name)
		}
	}

	for _, prov := range c.Providers {
		if len(prov.Rules) == 0 {
			return fmt.Errorf("config: provider %s has no detect rules", prov.Name)
		}
		for i, rule := range prov.Rules {
			where := fmt.Sprintf("provider %s detect[%d]", prov.Name, i)
			if rule.Header == "" {
				return fmt.Errorf("config: %s: header is required", where)
			}
			if rule.CurrencyField == "" {
				return fmt.Errorf("config: %s: currency_field is required", where)
			}
			if rule.SkipRows < 0 {
				return fmt.Errorf("config: %s: skip_rows must not be negative", where)
			}
			if len([]rune(rule.Delimiter)) > 1 {
				return fmt.Errorf("config: %s: delimiter must be a single character", where)
			}
			if rule.FilenamePattern != "" {
				if _, err := regexp.Compile(rule.FilenamePattern); err != nil {
					return fmt.Errorf("config: %s: invalid filename_pattern: %w", where, err)
				}
			}
			for _, ex := range rule.Extract {
				if ex.Field == "" {
					return fmt.Errorf("config: %s: extract field name is required", where)
				}
				if ex.Row < 0 || ex.Row >= rule.SkipRows {
					return fmt.Errorf("config: %s: extract %s: row %d is outside the %d skipped rows", where, ex.Field, ex.Row, rule.SkipRows)
				}
				if ex.Column < 0 {
					return fmt.Errorf("config: %s: extract %s: column must not be negative", where, ex.Field)
				}
				if ex.Normalize != "" && ex.Normalize != NormalizeSpacesToDashes {
					return fmt.Errorf("config: %s: extract %s: unknown normalize %q", where, ex.Field, ex.Normalize)
				}
			}
		}
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger repo.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Import:       "import",
			Pending:      "pending",
			Done:         "done",
			Unrecognized: "unrecognized",
			Rules:        "rules",
			Ledger:       "ledger",
			Journal:      "all.journal",
		},
		Git: GitConfig{
			AuthorName:  "Bankpipe",
			AuthorEmail: "pipeline@bankpipe.dev",
		},
		Workspace: WorkspaceConfig{
			MaxAgeHours: 48,
		},
	}
}
