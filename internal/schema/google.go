package schema

import "github.com/JonMunkholm/kwimport/internal/core"

// GoogleKeywordPlanner describes the Keyword Planner "Keyword Stats"
// export. Volumes are bucketed ranges such as "1K - 10K"; the indexed
// competition value (0-100) stands in for difficulty.
var GoogleKeywordPlanner = core.ToolSchema{
	Tool:            core.ToolGoogleKeywordPlanner,
	DisplayName:     "Google Keyword Planner",
	RequiredColumns: []string{"keyword"},
	OptionalColumns: []string{
		"avg. monthly searches",
		"competition",
		"competition (indexed value)",
		"top of page bid (low range)",
		"top of page bid (high range)",
		"currency",
		"three month change",
		"yoy change",
	},
	SignatureColumns: []string{"avg. monthly searches", "indexed value"},
	ColumnMappings: []core.ColumnMapping{
		{SourceColumn: "keyword", TargetField: core.FieldKeyword, Required: true},
		{SourceColumn: "avg. monthly searches", TargetField: core.FieldSearchVolume, Transform: core.TransformGoogleVolumeRange},
		{SourceColumn: "competition (indexed value)", TargetField: core.FieldDifficulty, Transform: core.TransformNumeric},
		{SourceColumn: "competition", TargetField: "competition"},
		{SourceColumn: "top of page bid (low range)", TargetField: "bidLow", Transform: core.TransformNumeric},
		{SourceColumn: "top of page bid (high range)", TargetField: "bidHigh", Transform: core.TransformNumeric},
		{SourceColumn: "currency", TargetField: "currency"},
		{SourceColumn: "three month change", TargetField: "threeMonthChange", Transform: core.TransformNumeric},
		{SourceColumn: "yoy change", TargetField: "yoyChange", Transform: core.TransformNumeric},
	},
	// Trend columns are signed percentages and stay unchecked.
	ValueValidators: map[string]core.Validator{
		core.FieldKeyword:      core.ValidateNonEmptyText,
		core.FieldSearchVolume: core.ValidateNonNegative,
		core.FieldDifficulty:   core.ValidatePercentRange,
		"bidLow":               core.ValidateNonNegative,
		"bidHigh":              core.ValidateNonNegative,
	},
}
