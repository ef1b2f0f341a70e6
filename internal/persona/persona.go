// Package persona defines the character configuration record and its
// update contract.
package persona

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	MinTemperature    = 0.1
	MaxTemperature    = 1.0
	MinResponseLength = 100
	MaxResponseLength = 1000
)

// Config is the persona a session speaks as. It is persisted as a whole
// record, never partially.
type Config struct {
	Name           string  `json:"name" yaml:"name"`
	Role           string  `json:"role" yaml:"role"`
	Appearance     string  `json:"appearance" yaml:"appearance"`
	Personality    string  `json:"personality" yaml:"personality"`
	Interests      string  `json:"interests" yaml:"interests"`
	Abilities      string  `json:"abilities" yaml:"abilities"`
	AdditionalInfo string  `json:"additional_info" yaml:"additional_info"`
	Temperature    float64 `json:"temperature" yaml:"temperature"`
	ResponseLength int     `json:"response_length" yaml:"response_length"`
}

// Defaults returns the built-in persona.
func Defaults() Config {
	return Config{
		Name:           "AI Assistant",
		Role:           "Assistant",
		Appearance:     "A sleek, futuristic digital entity.",
		Personality:    "Helpful, intelligent, and friendly.",
		Interests:      "Technology, science, and philosophy.",
		Abilities:      "Natural language understanding, knowledge retrieval, and personalized interactions.",
		AdditionalInfo: "",
		Temperature:    0.7,
		ResponseLength: 500,
	}
}

// Keys lists the field names accepted by Apply, in display order.
func Keys() []string {
	return []string{
		"name", "role", "appearance", "personality", "interests",
		"abilities", "additional_info", "temperature", "response_length",
	}
}

// ValidationResult represents the outcome of a validation pass.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// Validate checks field ranges. Blank descriptive fields only warn because
// the prompt still renders.
func (c Config) Validate() ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}

	if strings.TrimSpace(c.Name) == "" {
		res.Valid = false
		res.Errors = append(res.Errors, "name is required")
	}
	if strings.TrimSpace(c.Role) == "" {
		res.Valid = false
		res.Errors = append(res.Errors, "role is required")
	}
	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf("temperature %.2f outside [%.1f, %.1f]", c.Temperature, MinTemperature, MaxTemperature))
	}
	if c.ResponseLength < MinResponseLength || c.ResponseLength > MaxResponseLength {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf("response_length %d outside [%d, %d]", c.ResponseLength, MinResponseLength, MaxResponseLength))
	}

	for name, v := range map[string]string{
		"appearance":  c.Appearance,
		"personality": c.Personality,
		"interests":   c.Interests,
		"abilities":   c.Abilities,
	} {
		if strings.TrimSpace(v) == "" {
			res.Warnings = append(res.Warnings, name+" is empty")
		}
	}
	sort.Strings(res.Warnings)

	return res
}

// Normalize fills blank required fields from Defaults and clamps numeric
// fields into range. It reports whether anything changed.
func (c *Config) Normalize() bool {
	d := Defaults()
	changed := false

	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" && def != "" {
			*dst = def
			changed = true
		}
	}
	fill(&c.Name, d.Name)
	fill(&c.Role, d.Role)

	if c.Temperature == 0 {
		c.Temperature = d.Temperature
		changed = true
	} else if c.Temperature < MinTemperature {
		c.Temperature = MinTemperature
		changed = true
	} else if c.Temperature > MaxTemperature {
		c.Temperature = MaxTemperature
		changed = true
	}

	if c.ResponseLength == 0 {
		c.ResponseLength = d.ResponseLength
		changed = true
	} else if c.ResponseLength < MinResponseLength {
		c.ResponseLength = MinResponseLength
		changed = true
	} else if c.ResponseLength > MaxResponseLength {
		c.ResponseLength = MaxResponseLength
		changed = true
	}

	return changed
}

// Apply overwrites fields named in updates. Unknown keys and empty values are
// skipped and reported in ignored. Numeric values must parse and fall inside
// their ranges; the first invalid one aborts the update with c unchanged.
func (c *Config) Apply(updates map[string]string) (ignored []string, err error) {
	next := *c

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(updates[key])
		if value == "" {
			ignored = append(ignored, key)
			continue
		}

		switch key {
		case "name":
			next.Name = value
		case "role":
			next.Role = value
		case "appearance":
			next.Appearance = value
		case "personality":
			next.Personality = value
		case "interests":
			next.Interests = value
		case "abilities":
			next.Abilities = value
		case "additional_info":
			next.AdditionalInfo = value
		case "temperature":
			t, perr := strconv.ParseFloat(value, 64)
			if perr != nil {
				return nil, fmt.Errorf("temperature: %w", perr)
			}
			if t < MinTemperature || t > MaxTemperature {
				return nil, fmt.Errorf("temperature %.2f outside [%.1f, %.1f]", t, MinTemperature, MaxTemperature)
			}
			next.Temperature = t
		case "response_length":
			n, perr := strconv.Atoi(value)
			if perr != nil {
				return nil, fmt.Errorf("response_length: %w", perr)
			}
			if n < MinResponseLength || n > MaxResponseLength {
				return nil, fmt.Errorf("response_length %d outside [%d, %d]", n, MinResponseLength, MaxResponseLength)
			}
			next.ResponseLength = n
		default:
			ignored = append(ignored, key)
		}
	}

	*c = next
	return ignored, nil
}
