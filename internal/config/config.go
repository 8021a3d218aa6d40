package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models courtline.yml.
type Config struct {
	Case struct {
		DefaultLength int `yaml:"default_length"`
	} `yaml:"case"`
	CaseLengths         map[int]CaseLength `yaml:"case_lengths"`
	GateClassifications struct {
		Investigation []string `yaml:"investigation"`
		Trial         []string `yaml:"trial"`
	} `yaml:"gate_classifications"`
	CrossExamination struct {
		MaxPenalties  int `yaml:"max_penalties"`
		MinStatements int `yaml:"min_statements"`
		MaxStatements int `yaml:"max_statements"`
	} `yaml:"cross_examination"`
	Classifier Classifier `yaml:"classifier"`
	Saves      struct {
		Keep       int  `yaml:"keep"`
		AutoBackup bool `yaml:"auto_backup"`
	} `yaml:"saves"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// WebhookConfig posts case events to an external narrator or table tool.
// Events filters by event kind; empty means all kinds.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

// CaseLength describes the gate structure for a case lasting N in-game days.
type CaseLength struct {
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	Gates              []string `yaml:"gates"`
	InvestigationGates int      `yaml:"investigation_gates"`
	TrialTriggerPoint  int      `yaml:"trial_trigger_point"`
}

// Classifier holds the tables used for hidden role assignment.
type Classifier struct {
	MaxProbability         float64             `yaml:"max_probability"`
	ConspiratorCaps        map[int]int         `yaml:"conspirator_caps"`
	ConspiratorProbability map[int]float64     `yaml:"conspirator_probability"`
	RoleWeights            map[string]RoleTier `yaml:"role_weights"`
}

// RoleTier groups role labels sharing a suspicion weight.
type RoleTier struct {
	Weight float64  `yaml:"weight"`
	Roles  []string `yaml:"roles"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with courtline config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOrDefault returns the workspace config, or the built-in default when none exists.
func LoadOrDefault(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.CaseLengths) == 0 {
		return fmt.Errorf("config.case_lengths is required")
	}
	if _, ok := c.CaseLengths[c.Case.DefaultLength]; !ok {
		return fmt.Errorf("config.case.default_length %d has no case_lengths entry", c.Case.DefaultLength)
	}
	for n, cl := range c.CaseLengths {
		if n < 1 {
			return fmt.Errorf("case length %d must be positive", n)
		}
		if len(cl.Gates) == 0 {
			return fmt.Errorf("case length %d has no gates", n)
		}
		seen := map[string]bool{}
		investigation := 0
		for _, g := range cl.Gates {
			if g == "" {
				return fmt.Errorf("case length %d has empty gate id", n)
			}
			if seen[g] {
				return fmt.Errorf("case length %d repeats gate %s", n, g)
			}
			seen[g] = true
			switch c.GateKind(g) {
			case "investigation":
				investigation++
			case "trial":
			default:
				return fmt.Errorf("gate %s of case length %d is not classified", g, n)
			}
		}
		if investigation != cl.InvestigationGates {
			return fmt.Errorf("case length %d declares %d investigation gates, found %d", n, cl.InvestigationGates, investigation)
		}
		if cl.TrialTriggerPoint < 0 || cl.TrialTriggerPoint > cl.InvestigationGates {
			return fmt.Errorf("case length %d trial_trigger_point %d out of range", n, cl.TrialTriggerPoint)
		}
		if _, ok := c.Classifier.ConspiratorCaps[n]; !ok {
			return fmt.Errorf("classifier.conspirator_caps missing case length %d", n)
		}
		if _, ok := c.Classifier.ConspiratorProbability[n]; !ok {
			return fmt.Errorf("classifier.conspirator_probability missing case length %d", n)
		}
	}
	if c.CrossExamination.MaxPenalties < 1 {
		return fmt.Errorf("config.cross_examination.max_penalties must be at least 1")
	}
	if c.CrossExamination.MinStatements < 1 {
		return fmt.Errorf("config.cross_examination.min_statements must be at least 1")
	}
	if c.CrossExamination.MaxStatements < c.CrossExamination.MinStatements {
		return fmt.Errorf("config.cross_examination.max_statements below min_statements")
	}
	if c.Classifier.MaxProbability <= 0 || c.Classifier.MaxProbability > 1 {
		return fmt.Errorf("config.classifier.max_probability must be in (0,1]")
	}
	for tier, rt := range c.Classifier.RoleWeights {
		if rt.Weight <= 0 {
			return fmt.Errorf("role weight tier %s must be positive", tier)
		}
	}
	if c.Saves.Keep < 0 {
		return fmt.Errorf("config.saves.keep must not be negative")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Length returns the gate structure for a case length.
func (c *Config) Length(n int) (CaseLength, error) {
	cl, ok := c.CaseLengths[n]
	if !ok {
		return CaseLength{}, fmt.Errorf("invalid case length %d (valid: %s)", n, strings.Join(c.lengthNames(), ", "))
	}
	return cl, nil
}

// Lengths returns configured case lengths in ascending order.
func (c *Config) Lengths() []int {
	out := make([]int, 0, len(c.CaseLengths))
	for n := range c.CaseLengths {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (c *Config) lengthNames() []string {
	var out []string
	for _, n := range c.Lengths() {
		out = append(out, fmt.Sprintf("%d", n))
	}
	return out
}

// GateKind classifies a gate id as "investigation", "trial", or "unknown".
func (c *Config) GateKind(gate string) string {
	for _, g := range c.GateClassifications.Investigation {
		if g == gate {
			return "investigation"
		}
	}
	for _, g := range c.GateClassifications.Trial {
		if g == gate {
			return "trial"
		}
	}
	return "unknown"
}

// DetectCaseLength infers the case length from a gate list.
func (c *Config) DetectCaseLength(gates []string) int {
	want := map[string]bool{}
	for _, g := range gates {
		want[g] = true
	}
	for _, n := range c.Lengths() {
		cl := c.CaseLengths[n]
		if len(cl.Gates) != len(want) {
			continue
		}
		match := true
		for _, g := range cl.Gates {
			if !want[g] {
				match = false
				break
			}
		}
		if match {
			return n
		}
	}
	switch len(gates) {
	case 3:
		return 1
	case 4:
		return 2
	case 6:
		return 3
	}
	return c.Case.DefaultLength
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "courtline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `case:
  default_length: 2

case_lengths:
  1:
    name: "1-Day Case"
    description: "Straight to trial"
    gates: [trial_opening, first_witness_battle, final_revelation]
    investigation_gates: 0
    trial_trigger_point: 0
  2:
    name: "2-Day Case"
    description: "One day of investigation, one day in court"
    gates: [investigation_start, trial_opening, witness_confrontation, final_revelation]
    investigation_gates: 1
    trial_trigger_point: 1
  3:
    name: "3-Day Case"
    description: "Full investigation before the trial"
    gates: [crime_scene_analysis, witness_interviews, evidence_breakthrough, trial_opening, cross_examination_battle, final_revelation]
    investigation_gates: 3
    trial_trigger_point: 3

gate_classifications:
  investigation: [investigation_start, crime_scene_analysis, witness_interviews, evidence_breakthrough]
  trial: [trial_opening, first_witness_battle, witness_confrontation, cross_examination_battle, final_revelation]

cross_examination:
  max_penalties: 5
  min_statements: 3
  max_statements: 5

classifier:
  max_probability: 0.95
  conspirator_caps: {1: 1, 2: 2, 3: 3}
  conspirator_probability: {1: 0.2, 2: 0.4, 3: 0.6}
  role_weights:
    authority:
      weight: 0.3
      roles: [detective, investigator, police, cop, judge, magistrate, client, defendant, prosecutor,
              district attorney, da, doctor, physician, medical examiner, coroner]
    normal:
      weight: 1.0
      roles: [witness, bystander, lawyer, attorney, counsel, court clerk, bailiff, stenographer,
              journalist, reporter, friend, neighbor, colleague]
    suspicion:
      weight: 1.8
      roles: [security, security guard, guard, business rival, competitor, rival, ex-spouse, ex-wife,
              ex-husband, ex-partner, family, relative, sibling, brother, sister, son, daughter, child,
              debtor, borrower, tenant, employee, worker, staff, landlord, creditor]

saves:
  keep: 10
  auto_backup: true

logging:
  level: info
  format: text
`
