// =============================================================================
// Mission Sheet Converter - Shared Types
// =============================================================================
//
// This package contains the mission data model shared by the validation,
// converter and jsonwriter packages. Keeping it separate avoids import cycles:
//   - validation builds Records from RawRows
//   - converter collects Records into a Result
//   - jsonwriter serializes Records
//
// =============================================================================

package mission

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// RAW ROW
// =============================================================================

// ColumnCount is the number of positional fields every data row must have.
const ColumnCount = 7

// Column positions within a RawRow.
const (
	ColumnID = iota
	ColumnNames
	ColumnCategory
	ColumnRequirementType
	ColumnItems
	ColumnMinAmount
	ColumnMaxAmount
)

// ColumnNamesList holds the human-readable column names, indexed by position.
// They are used in error messages and as keys for transformation rules.
var ColumnNamesList = [ColumnCount]string{
	"missionId",
	"names",
	"category",
	"requirementType",
	"items",
	"minAmount",
	"maxAmount",
}

// ColumnIndex returns the position of a named column, or -1 when the name is
// not one of ColumnNamesList.
func ColumnIndex(name string) int {
	for i, n := range ColumnNamesList {
		if n == name {
			return i
		}
	}
	return -1
}

// RawRow is one data row read from the sheet, before validation.
type RawRow struct {
	// RowNumber is the 1-based line number in the source (the header is row 1).
	RowNumber int

	// Fields holds the positional string fields as read.
	// A well-formed row has exactly ColumnCount fields.
	Fields []string
}

// Field returns the field at index, or "" when the row is too short.
func (r RawRow) Field(index int) string {
	if index < 0 || index >= len(r.Fields) {
		return ""
	}
	return r.Fields[index]
}

// IsBlank reports whether the row carries no data at all: no fields, or a
// single whitespace-only field. A row of empty cells ("",,,,,) is not blank;
// it is a malformed mission and is left to validation.
func (r RawRow) IsBlank() bool {
	switch len(r.Fields) {
	case 0:
		return true
	case 1:
		return strings.TrimSpace(r.Fields[0]) == ""
	}
	return false
}

// =============================================================================
// MISSION RECORD
// =============================================================================

// Record is one normalized mission in the output document.
type Record struct {
	ID          string      `json:"id"`
	Weight      Weight      `json:"weight"`
	Titles      []string    `json:"titles"`
	Requirement Requirement `json:"requirement"`
	Reward      Reward      `json:"reward"`
}

// Requirement describes what the player must collect.
type Requirement struct {
	RequirementType string   `json:"requirementType"`
	Item            []string `json:"item"`
	MinAmount       int      `json:"minAmount"`
	MaxAmount       int      `json:"maxAmount"`
}

// Reward is the reward range granted for completing a mission.
type Reward struct {
	MinAmount int `json:"minAmount" yaml:"min_amount"`
	MaxAmount int `json:"maxAmount" yaml:"max_amount"`
}

// Weight is a mission's selection weight.
// It always marshals with a decimal point (10 -> 10.0) so consumers that
// distinguish integers from floats keep reading it as a float.
type Weight float64

// MarshalJSON implements json.Marshaler.
func (w Weight) MarshalJSON() ([]byte, error) {
	s := strconv.FormatFloat(float64(w), 'f', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			return []byte(s), nil
		}
	}
	return []byte(s + ".0"), nil
}

// =============================================================================
// CATEGORY TABLE
// =============================================================================

// Category is the reward tier attached to a category name.
type Category struct {
	Weight Weight `yaml:"weight"`
	Reward Reward `yaml:"reward"`
}

// CategoryTable maps a category name to its weight and reward range.
// It is treated as read-only once built.
type CategoryTable map[string]Category

// Lookup returns the category entry for name.
func (t CategoryTable) Lookup(name string) (Category, bool) {
	c, ok := t[name]
	return c, ok
}

// Names returns the category names in sorted order.
func (t CategoryTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the table is usable by the validator.
func (t CategoryTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("category table is empty")
	}
	for name, c := range t {
		if name == "" {
			return fmt.Errorf("category table contains an empty name")
		}
		// NaN and Inf have no JSON encoding.
		if w := float64(c.Weight); math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("category %q: weight must be a finite non-negative number, got %v", name, w)
		}
		if c.Reward.MinAmount > c.Reward.MaxAmount {
			return fmt.Errorf("category %q: reward min_amount %d exceeds max_amount %d",
				name, c.Reward.MinAmount, c.Reward.MaxAmount)
		}
	}
	return nil
}

// DefaultCategoryTable returns the built-in reward tiers.
func DefaultCategoryTable() CategoryTable {
	return CategoryTable{
		"Small": {
			Weight: 10.0,
			Reward: Reward{MinAmount: 2, MaxAmount: 6},
		},
		"Medium": {
			Weight: 8.0,
			Reward: Reward{MinAmount: 4, MaxAmount: 8},
		},
		"Large": {
			Weight: 6.0,
			Reward: Reward{MinAmount: 6, MaxAmount: 9},
		},
		"Extremely Rare": {
			Weight: 1.0,
			Reward: Reward{MinAmount: 10, MaxAmount: 15},
		},
	}
}
