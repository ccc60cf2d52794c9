package rule

// yamlPattern is one entry of a rule's patterns list.
type yamlPattern struct {
	Key     string `yaml:"key"`
	Pattern string `yaml:"pattern"`
	Flags   string `yaml:"flags,omitempty"`
}

// yamlRule is the intermediate struct for parsing rule files.
// JSON rule files decode through the same struct since YAML is a JSON superset.
type yamlRule struct {
	ID             string        `yaml:"id"`
	Name           string        `yaml:"name"`
	Severity       string        `yaml:"severity"`
	Description    string        `yaml:"description,omitempty"`
	Recommendation string        `yaml:"recommendation,omitempty"`
	Category       string        `yaml:"category,omitempty"`
	Patterns       []yamlPattern `yaml:"patterns"`
}

// yamlRulesFile represents the top-level structure of a rules file.
// A bare array of rules is also accepted.
type yamlRulesFile struct {
	Rules []yamlRule `yaml:"rules"`
}
