package config

import (
	"fmt"
	"strings"
)

// Tag classifies a primary option and selects its reason list.
type Tag string

const (
	TagPositive Tag = "positive"
	TagNegative Tag = "negative"
)

// DefaultOtherOption is the sentinel reason that opens the free-text form.
const DefaultOtherOption = "Otro"

// Taxonomy is the static survey definition for one kiosk variant.
type Taxonomy struct {
	Kind           string           `yaml:"kind"`
	Question       string           `yaml:"question"`
	ReasonQuestion string           `yaml:"reason_question"`
	OtherOption    string           `yaml:"other_option,omitempty"`
	Options        []OptionConfig   `yaml:"options"`
	Reasons        map[Tag][]string `yaml:"reasons"`
}

type OptionConfig struct {
	Text string `yaml:"text"`
	Tag  Tag    `yaml:"tag"`
}

func (t *Taxonomy) Validate() error {
	if t == nil {
		return fmt.Errorf("taxonomy is nil")
	}
	if strings.TrimSpace(t.Kind) == "" {
		return fmt.Errorf("taxonomy validation failed: no kind defined")
	}
	if strings.TrimSpace(t.Question) == "" {
		return fmt.Errorf("taxonomy validation failed: kind '%s' has no question", t.Kind)
	}
	if len(t.Options) == 0 {
		return fmt.Errorf("taxonomy validation failed: kind '%s' has no options", t.Kind)
	}

	other := t.Other()
	seen := make(map[string]bool)
	for i, option := range t.Options {
		if option.Text == "" {
			return fmt.Errorf("taxonomy validation failed: option #%d in '%s' has no text", i+1, t.Kind)
		}
		if seen[option.Text] {
			return fmt.Errorf("taxonomy validation failed: duplicate option '%s' in '%s'", option.Text, t.Kind)
		}
		seen[option.Text] = true

		if option.Tag != TagPositive && option.Tag != TagNegative {
			return fmt.Errorf("taxonomy validation failed: option '%s' in '%s' has unknown tag '%s'", option.Text, t.Kind, option.Tag)
		}
		reasons := t.Reasons[option.Tag]
		if len(reasons) == 0 {
			return fmt.Errorf("taxonomy validation failed: tag '%s' in '%s' has no reasons", option.Tag, t.Kind)
		}
	}

	for tag, reasons := range t.Reasons {
		if len(reasons) == 0 {
			continue
		}
		unique := make(map[string]bool)
		for j, reason := range reasons {
			if reason == "" {
				return fmt.Errorf("taxonomy validation failed: reason #%d for tag '%s' in '%s' is empty", j+1, tag, t.Kind)
			}
			if unique[reason] {
				return fmt.Errorf("taxonomy validation failed: duplicate reason '%s' for tag '%s' in '%s'", reason, tag, t.Kind)
			}
			unique[reason] = true
		}
		if reasons[len(reasons)-1] != other {
			return fmt.Errorf("taxonomy validation failed: reasons for tag '%s' in '%s' must end with '%s'", tag, t.Kind, other)
		}
	}
	return nil
}

// Other returns the sentinel reason label.
func (t *Taxonomy) Other() string {
	if t.OtherOption == "" {
		return DefaultOtherOption
	}
	return t.OtherOption
}

// IsOther reports whether reason opens the free-text form.
func (t *Taxonomy) IsOther(reason string) bool {
	return reason == t.Other()
}

// Option looks up a primary option by its label.
func (t *Taxonomy) Option(text string) (OptionConfig, bool) {
	for _, option := range t.Options {
		if option.Text == text {
			return option, true
		}
	}
	return OptionConfig{}, false
}

// ReasonsFor returns the ordered reasons shown for a tag.
func (t *Taxonomy) ReasonsFor(tag Tag) []string {
	return t.Reasons[tag]
}

// HasReason reports whether reason belongs to tag's list.
func (t *Taxonomy) HasReason(tag Tag, reason string) bool {
	for _, r := range t.Reasons[tag] {
		if r == reason {
			return true
		}
	}
	return false
}

// ReasonPrompt renders the secondary question for the selected option.
func (t *Taxonomy) ReasonPrompt(selection string) string {
	if t.ReasonQuestion == "" {
		return fmt.Sprintf("¿Por qué calificaste “%s”?", selection)
	}
	if strings.Contains(t.ReasonQuestion, "%s") {
		return fmt.Sprintf(t.ReasonQuestion, selection)
	}
	return t.ReasonQuestion
}
