package channel

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadClassifier reads an ordered rule list from a YAML file. The file holds
// a top-level "channels" key with a "rules" list; list order is the
// evaluation order. Rules naming a channel outside the taxonomy are
// rejected so a typo cannot grow the bucket key space.
func LoadClassifier(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "channel: read rules %s", path)
	}

	var wrapper struct {
		Channels struct {
			Rules []Rule `yaml:"rules"`
		} `yaml:"channels"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "channel: parse rules")
	}

	rules := wrapper.Channels.Rules
	if len(rules) == 0 {
		return nil, eris.Errorf("channel: no rules in %s", path)
	}
	for i, r := range rules {
		if !containsString(Labels, r.Channel) {
			return nil, eris.Errorf("channel: rule %d names unknown channel %q", i, r.Channel)
		}
		switch r.Match {
		case matchSourceContains, matchSourceEquals, matchMediumEquals:
		default:
			return nil, eris.Errorf("channel: rule %d has unknown match kind %q", i, r.Match)
		}
	}

	return &Classifier{rules: rules}, nil
}
