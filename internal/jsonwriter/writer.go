// =============================================================================
// Mission Sheet Converter - JSON Writer Module
// =============================================================================
//
// This module renders validated missions as the JSON document consumed by
// the game.
//
// JSON STRUCTURE:
//   [
//     {
//       "id": "m1",
//       "weight": 10.0,
//       "titles": [
//         "Give Stone"
//       ],
//       "requirement": {
//         "requirementType": "collect",
//         "item": [
//           "STONE"
//         ],
//         "minAmount": 2,
//         "maxAmount": 4
//       },
//       "reward": {
//         "minAmount": 2,
//         "maxAmount": 6
//       }
//     }
//   ]
//
//   Keys appear in this order. Arrays are never null. weight always carries
//   a decimal point.
//
// =============================================================================

package jsonwriter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ginjaninja78/mission-sheet-converter/internal/mission"
	"github.com/ginjaninja78/mission-sheet-converter/pkg/utils"
)

// =============================================================================
// JSON GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for JSON generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// EscapeHTML escapes <, > and & inside strings.
	// Default: false, so titles like "Fish & Chips" stay readable.
	EscapeHTML bool

	// TrailingNewline ends the document with a newline.
	// Default: true
	TrailingNewline bool
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:          "  ",
		EscapeHTML:      false,
		TrailingNewline: true,
	}
}

// =============================================================================
// JSON GENERATION FUNCTIONS
// =============================================================================

// Generate renders missions with the default options.
func Generate(missions []mission.Record) ([]byte, error) {
	return GenerateWithOptions(missions, DefaultGenerateOptions())
}

// GenerateWithOptions renders missions with custom options.
func GenerateWithOptions(missions []mission.Record, options GenerateOptions) ([]byte, error) {
	if missions == nil {
		missions = []mission.Record{}
	}

	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetIndent("", options.Indent)
	encoder.SetEscapeHTML(options.EscapeHTML)

	if err := encoder.Encode(normalize(missions)); err != nil {
		return nil, fmt.Errorf("failed to encode missions: %w", err)
	}

	out := buffer.Bytes()
	if !options.TrailingNewline {
		out = bytes.TrimRight(out, "\n")
	}
	return out, nil
}

// normalize replaces nil slices so they render as [] instead of null.
func normalize(missions []mission.Record) []mission.Record {
	out := make([]mission.Record, len(missions))
	for i, m := range missions {
		if m.Titles == nil {
			m.Titles = []string{}
		}
		if m.Requirement.Item == nil {
			m.Requirement.Item = []string{}
		}
		out[i] = m
	}
	return out
}

// WriteFile renders missions and replaces path atomically.
//
// RETURNS:
//   - The number of bytes written.
//   - An error if rendering or writing fails. The previous file, if any,
//     is left untouched on error.
func WriteFile(path string, missions []mission.Record) (int, error) {
	data, err := Generate(missions)
	if err != nil {
		return 0, err
	}
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return len(data), nil
}

// ReadFile loads a missions document written by WriteFile.
func ReadFile(path string) ([]mission.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var missions []mission.Record
	if err := json.Unmarshal(data, &missions); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return missions, nil
}

// =============================================================================
// JSON SCHEMA GENERATION
// =============================================================================

// GenerateSchema creates a JSON Schema (draft 2020-12) describing the output
// document. Weight and reward ranges are constrained to the tiers of the
// given category table.
func GenerateSchema(categories mission.CategoryTable) ([]byte, error) {
	names := categories.Names()

	weights := make([]float64, 0, len(names))
	seenWeight := make(map[float64]bool)
	rewards := make([]interface{}, 0, len(names))
	for _, name := range names {
		c := categories[name]
		if w := float64(c.Weight); !seenWeight[w] {
			seenWeight[w] = true
			weights = append(weights, w)
		}
		rewards = append(rewards, map[string]interface{}{
			"const": map[string]int{
				"minAmount": c.Reward.MinAmount,
				"maxAmount": c.Reward.MaxAmount,
			},
			"description": name,
		})
	}

	stringList := func(minItems int) map[string]interface{} {
		return map[string]interface{}{
			"type":     "array",
			"items":    map[string]interface{}{"type": "string", "minLength": 1},
			"minItems": minItems,
		}
	}

	schema := map[string]interface{}{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"title":       "Missions",
		"description": "Missions generated from the mission sheet",
		"type":        "array",
		"items": map[string]interface{}{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"id", "weight", "titles", "requirement", "reward"},
			"properties": map[string]interface{}{
				"id":     map[string]interface{}{"type": "string"},
				"weight": map[string]interface{}{"type": "number", "enum": weights},
				"titles": stringList(0),
				"requirement": map[string]interface{}{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"requirementType", "item", "minAmount", "maxAmount"},
					"properties": map[string]interface{}{
						"requirementType": map[string]interface{}{"type": "string"},
						"item":            stringList(1),
						"minAmount":       map[string]interface{}{"type": "integer"},
						"maxAmount":       map[string]interface{}{"type": "integer"},
					},
				},
				"reward": map[string]interface{}{
					"type":  "object",
					"anyOf": rewards,
				},
			},
		},
	}

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return append(out, '\n'), nil
}
