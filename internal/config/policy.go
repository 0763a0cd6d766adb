package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the optional YAML cache policy:
//
//	default_ttl: 10m
//	domains:
//	  statistics:
//	    ttl: 5m
//	    fallback: any-cached
type PolicyFile struct {
	DefaultTTL Duration                 `yaml:"default_ttl"`
	Domains    map[string]DomainSetting `yaml:"domains"`
}

type DomainSetting struct {
	TTL      Duration `yaml:"ttl"`
	Fallback string   `yaml:"fallback"`
}

// Duration accepts Go duration strings such as "90s" or "24h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadPolicyFile reads and parses the policy at path.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}
	return &pf, nil
}

// apply copies the settings present in the file onto cfg. Unknown domains
// are kept so Validate and the policy see them.
func (pf *PolicyFile) apply(cfg *Config) {
	if pf.DefaultTTL != 0 {
		cfg.DefaultTTL = time.Duration(pf.DefaultTTL)
	}
	for name, s := range pf.Domains {
		if s.TTL != 0 {
			cfg.TTLs[name] = time.Duration(s.TTL)
		}
		if s.Fallback != "" {
			cfg.Fallbacks[name] = s.Fallback
		}
	}
}
