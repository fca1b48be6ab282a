package validation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ginjaninja78/mission-sheet-converter/internal/itemset"
	"github.com/ginjaninja78/mission-sheet-converter/internal/mission"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestValidator(options Options) *Validator {
	options.ItemListName = "itemlist_dump.txt"
	return NewValidator(mission.DefaultCategoryTable(), itemset.New("STONE", "WOOD", "IRON_ORE"), options)
}

func row(number int, fields ...string) mission.RawRow {
	return mission.RawRow{RowNumber: number, Fields: fields}
}

func TestValidateRowValid(t *testing.T) {
	v := newTestValidator(Options{})

	record, problems := v.ValidateRow(row(2, "m1", "Give Stone", "Small", "collect", "STONE", "2", "4"))
	require.Empty(t, problems)
	require.NotNil(t, record)

	want := &mission.Record{
		ID:     "m1",
		Weight: 10.0,
		Titles: []string{"Give Stone"},
		Requirement: mission.Requirement{
			RequirementType: "collect",
			Item:            []string{"STONE"},
			MinAmount:       2,
			MaxAmount:       4,
		},
		Reward: mission.Reward{MinAmount: 2, MaxAmount: 6},
	}
	if diff := cmp.Diff(want, record); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateRowCopiesCategoryTier(t *testing.T) {
	v := newTestValidator(Options{})

	tests := []struct {
		category string
		weight   mission.Weight
		reward   mission.Reward
	}{
		{"Small", 10, mission.Reward{MinAmount: 2, MaxAmount: 6}},
		{"Medium", 8, mission.Reward{MinAmount: 4, MaxAmount: 8}},
		{"Large", 6, mission.Reward{MinAmount: 6, MaxAmount: 9}},
		{"Extremely Rare", 1, mission.Reward{MinAmount: 10, MaxAmount: 15}},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			record, problems := v.ValidateRow(row(2, "m", "t", tt.category, "collect", "WOOD", "1", "1"))
			require.Empty(t, problems)
			require.NotNil(t, record)
			assert.Equal(t, tt.weight, record.Weight)
			assert.Equal(t, tt.reward, record.Reward)
		})
	}
}

func TestValidateRowInvalidItem(t *testing.T) {
	v := newTestValidator(Options{})

	record, problems := v.ValidateRow(row(3, "m2", "X", "Small", "collect", "LAVA", "1", "2"))
	assert.Nil(t, record)
	require.Len(t, problems, 1)

	p := problems[0]
	assert.Equal(t, RuleItemID, p.Rule)
	assert.Equal(t, "LAVA", p.Value)
	assert.Equal(t, "items", p.Field)
	assert.Contains(t, p.Error(), "invalid item ID")
	assert.Contains(t, p.Error(), "LAVA")
	assert.Equal(t, "Row 3 (Mission: m2): invalid item ID 'LAVA' (not found in itemlist_dump.txt)", p.Error())
}

func TestValidateRowCollectsEveryViolation(t *testing.T) {
	v := newTestValidator(Options{})

	record, problems := v.ValidateRow(row(7, "m3", "", "Huge", "collect", "LAVA, STONE ,MAGMA", "one", "2"))
	assert.Nil(t, record)

	var rules []string
	for _, p := range problems {
		rules = append(rules, p.Rule)
		assert.Equal(t, 7, p.RowNumber)
		assert.Equal(t, "m3", p.MissionID)
	}
	assert.Equal(t, []string{RuleCategory, RuleItemID, RuleItemID, RuleAmount}, rules)

	assert.Contains(t, problems[0].Message, "invalid category 'Huge'")
	assert.Equal(t, "LAVA", problems[1].Value)
	assert.Equal(t, "MAGMA", problems[2].Value)
	assert.Equal(t, "invalid min/max amount ('one', '2'), must be integers", problems[3].Message)
}

func TestValidateRowEmptyItems(t *testing.T) {
	v := newTestValidator(Options{})

	for _, items := range []string{"", "  ", " , ,"} {
		record, problems := v.ValidateRow(row(2, "m4", "t", "Small", "collect", items, "1", "2"))
		assert.Nil(t, record)
		require.Len(t, problems, 1, "items %q", items)
		assert.Equal(t, RuleItemsEmpty, problems[0].Rule)
	}
}

func TestValidateRowFieldCount(t *testing.T) {
	v := newTestValidator(Options{})

	tests := []struct {
		name   string
		fields []string
	}{
		{"too few", []string{"m5", "t", "Small"}},
		{"too many", []string{"m5", "t", "Small", "collect", "STONE", "1", "2", "extra"}},
		{"two empty", []string{"", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, problems := v.ValidateRow(row(9, tt.fields...))
			assert.Nil(t, record)
			require.Len(t, problems, 1)
			assert.Equal(t, RuleFieldCount, problems[0].Rule)
			assert.Equal(t, "", problems[0].MissionID)
			assert.True(t, strings.HasPrefix(problems[0].Error(), "Row 9: invalid row format, expected 7 columns"))
		})
	}
}

func TestValidateRowAllEmptyCells(t *testing.T) {
	v := newTestValidator(Options{})

	record, problems := v.ValidateRow(row(4, make([]string, 7)...))
	assert.Nil(t, record)

	var rules []string
	for _, p := range problems {
		rules = append(rules, p.Rule)
	}
	assert.Equal(t, []string{RuleCategory, RuleItemsEmpty, RuleAmount}, rules)
}

func TestValidateRowBlank(t *testing.T) {
	v := newTestValidator(Options{})

	for _, r := range []mission.RawRow{row(2), row(3, "   ")} {
		record, problems := v.ValidateRow(r)
		assert.Nil(t, record)
		assert.Nil(t, problems)
	}
}

func TestValidateRowEmptyTitlesAllowed(t *testing.T) {
	v := newTestValidator(Options{})

	record, problems := v.ValidateRow(row(2, "m6", " , ", "Small", "collect", "STONE", "1", "2"))
	require.Empty(t, problems)
	require.NotNil(t, record)
	assert.NotNil(t, record.Titles)
	assert.Empty(t, record.Titles)
}

func TestValidateRowSplitsListsAndKeepsFieldsVerbatim(t *testing.T) {
	v := newTestValidator(Options{})

	record, problems := v.ValidateRow(row(2, "m7", " Mine , Dig,", "Large", " gather ", " STONE , WOOD,IRON_ORE ", " -3 ", "+4"))
	require.Empty(t, problems)
	require.NotNil(t, record)

	assert.Equal(t, []string{"Mine", "Dig"}, record.Titles)
	assert.Equal(t, []string{"STONE", "WOOD", "IRON_ORE"}, record.Requirement.Item)
	assert.Equal(t, " gather ", record.Requirement.RequirementType)
	assert.Equal(t, -3, record.Requirement.MinAmount)
	assert.Equal(t, 4, record.Requirement.MaxAmount)
}

func TestValidateRowCategoryIsCaseSensitive(t *testing.T) {
	v := newTestValidator(Options{})

	_, problems := v.ValidateRow(row(2, "m8", "t", "small", "collect", "STONE", "1", "2"))
	require.Len(t, problems, 1)
	assert.Equal(t, RuleCategory, problems[0].Rule)
	assert.Contains(t, problems[0].Message, "Extremely Rare, Large, Medium, Small")
}

func TestValidateRowAmountRange(t *testing.T) {
	input := row(2, "m9", "t", "Small", "collect", "STONE", "9", "2")

	t.Run("warning by default", func(t *testing.T) {
		record, problems := newTestValidator(Options{}).ValidateRow(input)
		require.NotNil(t, record)
		require.Len(t, problems, 1)
		assert.Equal(t, SeverityWarning, problems[0].Severity)
		assert.Equal(t, RuleAmountRange, problems[0].Rule)
		assert.Equal(t, 9, record.Requirement.MinAmount)
		assert.Equal(t, 2, record.Requirement.MaxAmount)
	})

	t.Run("error when strict", func(t *testing.T) {
		record, problems := newTestValidator(Options{StrictAmountRange: true}).ValidateRow(input)
		assert.Nil(t, record)
		require.Len(t, problems, 1)
		assert.Equal(t, SeverityError, problems[0].Severity)
	})
}

func TestValidateRowRejectsTrailingGarbage(t *testing.T) {
	v := newTestValidator(Options{})

	for _, amount := range []string{"5x", "1.5", "", "99999999999"} {
		_, problems := v.ValidateRow(row(2, "m", "t", "Small", "collect", "STONE", amount, "10"))
		require.Len(t, problems, 1, "amount %q", amount)
		assert.Equal(t, RuleAmount, problems[0].Rule)
	}
}

func TestValidateRows(t *testing.T) {
	v := newTestValidator(Options{})

	result := v.ValidateRows([]mission.RawRow{
		row(2, "m1", "Give Stone", "Small", "collect", "STONE", "2", "4"),
		row(3),
		row(4, "m2", "X", "Small", "collect", "LAVA", "1", "2"),
		row(5, "m3", "Y", "Medium", "collect", "WOOD", "8", "3"),
		row(6, "short"),
	})

	assert.False(t, result.IsValid())
	assert.Equal(t, 4, result.RowsValidated)
	assert.Equal(t, 1, result.RowsSkipped)
	assert.Equal(t, 2, result.ErrorCount())
	assert.Equal(t, 1, result.WarningCount())

	require.Len(t, result.Missions, 2)
	assert.Equal(t, "m1", result.Missions[0].ID)
	assert.Equal(t, "m3", result.Missions[1].ID)

	assert.Equal(t, 4, result.Errors[0].RowNumber)
	assert.Equal(t, 6, result.Errors[1].RowNumber)
}

func TestValidateRowsEmpty(t *testing.T) {
	result := newTestValidator(Options{}).ValidateRows(nil)
	assert.True(t, result.IsValid())
	assert.NotNil(t, result.Missions)
	assert.Empty(t, result.Missions)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitAndTrim(" a , b,c "))
	assert.Equal(t, []string{"a b"}, SplitAndTrim(" a b ,,"))
	assert.Equal(t, []string{}, SplitAndTrim(""))
}

func TestNewParseError(t *testing.T) {
	result := NewResult()
	result.Add(NewParseError(errors.New("bare quote in field")))

	require.Len(t, result.Errors, 1)
	assert.Equal(t, RuleCSVParse, result.Errors[0].Rule)
	assert.Equal(t, "failed to parse sheet data: bare quote in field", result.Errors[0].Error())
}

func TestFormatErrors(t *testing.T) {
	assert.Equal(t, "No validation errors.", FormatErrors(nil))

	v := newTestValidator(Options{})
	_, problems := v.ValidateRow(row(3, "m2", "X", "Small", "collect", "LAVA", "1", "2"))

	out := FormatErrors(problems)
	assert.Contains(t, out, "Validation completed with 1 error(s):")
	assert.Contains(t, out, "1. Row 3 (Mission: m2): invalid item ID 'LAVA'")
}

func TestWriteErrorLog(t *testing.T) {
	v := newTestValidator(Options{})
	_, problems := v.ValidateRow(row(3, "m2", "X", "Huge", "collect", "LAVA", "1", "2"))

	path := filepath.Join(t.TempDir(), "errors.log")
	require.NoError(t, WriteErrorLog(problems, path, "rows.csv"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Source:    rows.csv")
	assert.Contains(t, content, "1. Row 3 (Mission: m2): invalid category 'Huge'")
	assert.Contains(t, content, "2. Row 3 (Mission: m2): invalid item ID 'LAVA'")

	err = WriteErrorLog(problems, filepath.Join(t.TempDir(), "missing", "errors.log"), "rows.csv")
	assert.Error(t, err)
}
