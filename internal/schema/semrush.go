package schema

import "github.com/JonMunkholm/kwimport/internal/core"

// Semrush describes the Keyword Magic Tool / Keyword Overview export.
// Older exports name the volume column "Search Volume" and difficulty "KD".
var Semrush = core.ToolSchema{
	Tool:             core.ToolSemrush,
	DisplayName:      "Semrush",
	RequiredColumns:  []string{"keyword"},
	OptionalColumns:  []string{"search volume", "volume", "kd", "keyword difficulty", "cpc", "competition", "serp features", "trend", "intent"},
	SignatureColumns: []string{"kd", "serp features"},
	ColumnMappings: []core.ColumnMapping{
		{SourceColumn: "keyword", TargetField: core.FieldKeyword, Required: true},
		{SourceColumn: "search volume", TargetField: core.FieldSearchVolume, Transform: core.TransformNumeric},
		{SourceColumn: "volume", TargetField: core.FieldSearchVolume, Transform: core.TransformNumeric},
		{SourceColumn: "kd", TargetField: core.FieldDifficulty, Transform: core.TransformNumeric},
		{SourceColumn: "keyword difficulty", TargetField: core.FieldDifficulty, Transform: core.TransformNumeric},
		{SourceColumn: "cpc", TargetField: "cpc", Transform: core.TransformNumeric},
		{SourceColumn: "competition", TargetField: "competition", Transform: core.TransformNumeric},
		{SourceColumn: "serp features", TargetField: "serpFeatures"},
		{SourceColumn: "trend", TargetField: "trend"},
		{SourceColumn: "intent", TargetField: "intent"},
	},
	ValueValidators: map[string]core.Validator{
		core.FieldKeyword:      core.ValidateNonEmptyText,
		core.FieldSearchVolume: core.ValidateNonNegative,
		core.FieldDifficulty:   core.ValidatePercentRange,
		"cpc":                  core.ValidateNonNegative,
		"competition":          core.ValidateNonNegative,
	},
}
