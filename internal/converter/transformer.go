// =============================================================================
// Mission Sheet Converter - Transformation Engine
// =============================================================================
//
// This module rewrites raw row fields before validation, so a sheet with
// cosmetic differences (stray spaces in category names, lowercase item IDs,
// legacy category names) can be normalized from configuration instead of
// being fixed by hand.
//
// TRANSFORMATION TYPES:
//   - prepend_string / append_string
//   - trim, uppercase, lowercase
//   - replace (plain substring)
//   - regex_replace (Go RE2 syntax, $1 style expansions)
//   - lookup (whole-value replacement table)
//
// RULES:
//   Rules are keyed by column name (missionId, names, category,
//   requirementType, items, minAmount, maxAmount). Actions of a rule run in
//   order. Several rules may target the same column; they run in the order
//   they are configured. No rules means rows pass through unchanged.
//
// =============================================================================

package converter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ginjaninja78/mission-sheet-converter/internal/config"
	"github.com/ginjaninja78/mission-sheet-converter/internal/mission"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies configured transformation rules to raw rows.
type Transformer struct {
	steps []transformStep
}

// transformStep is one action bound to a column, with its pattern compiled.
type transformStep struct {
	column  int
	action  config.TransformationAction
	pattern *regexp.Regexp
}

// NewTransformer creates a Transformer with the given rules.
// Unknown columns and invalid regular expressions are rejected here rather
// than on the first row.
func NewTransformer(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{}

	for _, rule := range rules {
		column := mission.ColumnIndex(rule.Field)
		if column < 0 {
			return nil, fmt.Errorf("unknown transformation field %q", rule.Field)
		}

		for _, action := range rule.Actions {
			step := transformStep{column: column, action: action}
			if action.Type == "regex_replace" {
				pattern, err := regexp.Compile(action.Find)
				if err != nil {
					return nil, fmt.Errorf("invalid regex_replace pattern for field %q: %w", rule.Field, err)
				}
				step.pattern = pattern
			}
			t.steps = append(t.steps, step)
		}
	}

	return t, nil
}

// Empty reports whether the transformer has nothing to do.
func (t *Transformer) Empty() bool {
	return t == nil || len(t.steps) == 0
}

// TransformRow returns a copy of row with every rule applied.
// Columns missing from a short row are left alone; the validator reports the
// row's structure.
func (t *Transformer) TransformRow(row mission.RawRow) (mission.RawRow, error) {
	if t.Empty() || row.IsBlank() {
		return row, nil
	}

	fields := make([]string, len(row.Fields))
	copy(fields, row.Fields)

	for _, step := range t.steps {
		if step.column >= len(fields) {
			continue
		}
		value, err := applyStep(fields[step.column], step)
		if err != nil {
			return row, fmt.Errorf("row %d: failed to apply %s to field %s: %w",
				row.RowNumber, step.action.Type, mission.ColumnNamesList[step.column], err)
		}
		fields[step.column] = value
	}

	return mission.RawRow{RowNumber: row.RowNumber, Fields: fields}, nil
}

func applyStep(value string, step transformStep) (string, error) {
	if step.pattern != nil {
		return step.pattern.ReplaceAllString(value, step.action.Value), nil
	}
	return ApplyTransformation(value, step.action)
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

// ApplyTransformation applies a single transformation action.
//
// PARAMETERS:
//   - value: The current value.
//   - action: The transformation action to apply.
//
// RETURNS:
//   - The transformed value.
//   - An error if the action type is unknown or its pattern is invalid.
func ApplyTransformation(value string, action config.TransformationAction) (string, error) {
	switch action.Type {
	case "prepend_string":
		// Example: "STONE" with prepend "minecraft:" becomes "minecraft:STONE"
		return action.Value + value, nil

	case "append_string":
		return value + action.Value, nil

	case "trim":
		return strings.TrimSpace(value), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "replace":
		// Example: "Extremely rare" with find "rare" and value "Rare" becomes "Extremely Rare"
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "regex_replace":
		pattern, err := regexp.Compile(action.Find)
		if err != nil {
			return value, fmt.Errorf("invalid pattern %q: %w", action.Find, err)
		}
		return pattern.ReplaceAllString(value, action.Value), nil

	case "lookup":
		// Example: "Tiny" with lookup {"Tiny": "Small"} becomes "Small"
		if replacement, exists := action.LookupTable[value]; exists {
			return replacement, nil
		}
		return value, nil

	default:
		return value, fmt.Errorf("unknown transformation type: %s", action.Type)
	}
}
