package schema

import "github.com/JonMunkholm/kwimport/internal/core"

// Ahrefs describes the Keywords Explorer export. Its Country column is the
// only region any supported tool exports.
var Ahrefs = core.ToolSchema{
	Tool:             core.ToolAhrefs,
	DisplayName:      "Ahrefs",
	RequiredColumns:  []string{"keyword"},
	OptionalColumns:  []string{"volume", "kd", "difficulty", "cpc", "cps", "parent topic", "traffic potential", "global volume", "country"},
	SignatureColumns: []string{"parent topic", "traffic potential"},
	ColumnMappings: []core.ColumnMapping{
		{SourceColumn: "keyword", TargetField: core.FieldKeyword, Required: true},
		{SourceColumn: "volume", TargetField: core.FieldSearchVolume, Transform: core.TransformNumeric},
		{SourceColumn: "kd", TargetField: core.FieldDifficulty, Transform: core.TransformNumeric},
		{SourceColumn: "difficulty", TargetField: core.FieldDifficulty, Transform: core.TransformNumeric},
		{SourceColumn: "cpc", TargetField: "cpc", Transform: core.TransformNumeric},
		{SourceColumn: "cps", TargetField: "cps", Transform: core.TransformNumeric},
		{SourceColumn: "parent topic", TargetField: "parentTopic"},
		{SourceColumn: "traffic potential", TargetField: "trafficPotential", Transform: core.TransformNumeric},
		{SourceColumn: "global volume", TargetField: "globalVolume", Transform: core.TransformNumeric},
		{SourceColumn: "country", TargetField: core.FieldRegion, Transform: core.TransformRegionCode},
	},
	ValueValidators: map[string]core.Validator{
		core.FieldKeyword:      core.ValidateNonEmptyText,
		core.FieldSearchVolume: core.ValidateNonNegative,
		core.FieldDifficulty:   core.ValidatePercentRange,
		"cpc":                  core.ValidateNonNegative,
		"cps":                  core.ValidateNonNegative,
		"trafficPotential":     core.ValidateNonNegative,
		"globalVolume":         core.ValidateNonNegative,
	},
}
