package heuristics

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// signalOverride changes selected fields of a signal rule
type signalOverride struct {
	Name        Signal   `yaml:"name"`
	Weight      *float64 `yaml:"weight"`
	Cap         *float64 `yaml:"cap"`
	Visibility  *float64 `yaml:"visibility"`
	Description *string  `yaml:"description"`
	Disabled    bool     `yaml:"disabled"`
}

type rulesetFile struct {
	Ruleset `yaml:",inline"`
	Signals []signalOverride `yaml:"signals"`
}

// LoadRuleset reads a YAML ruleset file and overlays it on the default ruleset.
// Lists present in the file replace the defaults; signals are merged by name.
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset: %w", err)
	}
	return ParseRuleset(data)
}

// ParseRuleset overlays YAML ruleset data on the default ruleset
func ParseRuleset(data []byte) (*Ruleset, error) {
	defaults := DefaultRuleset()
	file := rulesetFile{Ruleset: *defaults}
	file.Version = ""

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse ruleset: %w", err)
	}

	rules := file.Ruleset
	rules.Signals = mergeSignals(defaults.Signals, file.Signals)

	// A customised ruleset must not share cache entries with the shipped one
	if rules.Version == "" {
		sum := sha256.Sum256(data)
		rules.Version = DefaultVersion + "+" + hex.EncodeToString(sum[:4])
	}

	out := rules.Clone()
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ruleset: %w", err)
	}
	return out, nil
}

func mergeSignals(base []SignalRule, overrides []signalOverride) []SignalRule {
	merged := make([]SignalRule, 0, len(base))
	merged = append(merged, base...)

	for _, o := range overrides {
		idx := -1
		for i := range merged {
			if merged[i].Name == o.Name {
				idx = i
				break
			}
		}

		if o.Disabled {
			if idx >= 0 {
				merged = append(merged[:idx], merged[idx+1:]...)
			}
			continue
		}

		if idx < 0 {
			merged = append(merged, SignalRule{Name: o.Name})
			idx = len(merged) - 1
		}
		rule := &merged[idx]
		if o.Weight != nil {
			rule.Weight = *o.Weight
		}
		if o.Cap != nil {
			rule.Cap = *o.Cap
		}
		if o.Visibility != nil {
			rule.Visibility = *o.Visibility
		}
		if o.Description != nil {
			rule.Description = *o.Description
		}
	}

	sortSignals(merged)
	return merged
}
