package slotgraph

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type yamlBranch struct {
	Pattern string `yaml:"pattern"`
	Next    string `yaml:"next"`
}

type yamlSlot struct {
	ID          string       `yaml:"id"`
	Prompt      string       `yaml:"prompt"`
	Required    bool         `yaml:"required"`
	Branches    []yamlBranch `yaml:"branches"`
	DefaultNext string       `yaml:"default_next"`
}

type yamlGraph struct {
	Slots []yamlSlot `yaml:"slots"`
}

// Parse builds a graph from YAML. A default_next of "none" (or absent)
// marks a terminal slot, so new interview paths are configuration, not code.
func Parse(data []byte) (*Graph, error) {
	var doc yamlGraph
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse slot graph yaml: %w", err)
	}

	defs := make([]Definition, 0, len(doc.Slots))
	for _, s := range doc.Slots {
		next := s.DefaultNext
		if strings.EqualFold(next, "none") {
			next = ""
		}
		d := Definition{
			ID:          s.ID,
			Prompt:      s.Prompt,
			Required:    s.Required,
			DefaultNext: next,
		}
		for _, b := range s.Branches {
			d.Branches = append(d.Branches, Branch{Pattern: b.Pattern, Next: b.Next})
		}
		defs = append(defs, d)
	}

	return New(defs)
}

// LoadFile reads a YAML slot graph from disk.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read slot graph %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in fertility intake graph, used when no graph
// file is configured.
func Default() *Graph {
	g, err := New([]Definition{
		{
			ID:          "full_name",
			Prompt:      "What is your full name?",
			Required:    true,
			DefaultNext: "dob",
		},
		{
			ID:          "dob",
			Prompt:      "What is your date of birth?",
			Required:    true,
			DefaultNext: "email",
		},
		{
			ID:          "email",
			Prompt:      "What email address should we use to reach you?",
			Required:    true,
			DefaultNext: "phone",
		},
		{
			ID:          "phone",
			Prompt:      "What is your phone number?",
			Required:    false,
			DefaultNext: "has_partner",
		},
		{
			ID:          "has_partner",
			Prompt:      "Do you currently have a partner?",
			Required:    true,
			DefaultNext: "chief_complaint",
		},
		{
			ID:       "chief_complaint",
			Prompt:   "What brings you in today?",
			Required: true,
			Branches: []Branch{
				{Pattern: ".*(fertility|ttc|conceiv).*", Next: "months_ttc"},
			},
			DefaultNext: "medications",
		},
		{
			ID:          "months_ttc",
			Prompt:      "How many months have you been trying to conceive?",
			Required:    true,
			DefaultNext: "medications",
		},
		{
			ID:          "medications",
			Prompt:      "Are you taking any medications or supplements? (list them, or say none)",
			Required:    false,
			DefaultNext: "",
		},
	})
	if err != nil {
		// The built-in graph is validated by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return g
}
