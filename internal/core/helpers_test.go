package core

import "time"

// testCatalog holds two small schemas shaped like real tool exports.
func testCatalog() *Catalog {
	c := NewCatalog()
	c.Register(ToolSchema{
		Tool:             ToolSemrush,
		DisplayName:      "Semrush",
		RequiredColumns:  []string{"keyword"},
		OptionalColumns:  []string{"search volume", "kd", "cpc", "intent"},
		SignatureColumns: []string{"kd"},
		ColumnMappings: []ColumnMapping{
			{SourceColumn: "keyword", TargetField: FieldKeyword, Required: true},
			{SourceColumn: "search volume", TargetField: FieldSearchVolume, Transform: TransformNumeric},
			{SourceColumn: "kd", TargetField: FieldDifficulty, Transform: TransformNumeric},
			{SourceColumn: "cpc", TargetField: "cpc", Transform: TransformNumeric},
			{SourceColumn: "intent", TargetField: "intent"},
		},
	})
	c.Register(ToolSchema{
		Tool:             ToolAhrefs,
		DisplayName:      "Ahrefs",
		RequiredColumns:  []string{"keyword"},
		OptionalColumns:  []string{"volume", "difficulty", "parent topic", "country"},
		SignatureColumns: []string{"parent topic"},
		ColumnMappings: []ColumnMapping{
			{SourceColumn: "keyword", TargetField: FieldKeyword, Required: true},
			{SourceColumn: "volume", TargetField: FieldSearchVolume, Transform: TransformNumeric},
			{SourceColumn: "difficulty", TargetField: FieldDifficulty, Transform: TransformNumeric},
			{SourceColumn: "parent topic", TargetField: "parentTopic"},
			{SourceColumn: "country", TargetField: FieldRegion, Transform: TransformRegionCode},
		},
	})
	return c
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func ptr(f float64) *float64 { return &f }

func extra(kv ...any) ExtraData {
	var e ExtraData
	for i := 0; i+1 < len(kv); i += 2 {
		key := kv[i].(string)
		switch v := kv[i+1].(type) {
		case string:
			e.Set(key, StringValue(v))
		case float64:
			e.Set(key, NumberValue(v))
		case int:
			e.Set(key, NumberValue(float64(v)))
		case bool:
			e.Set(key, BoolValue(v))
		}
	}
	return e
}

func extraNum(e ExtraData, key string) (float64, bool) {
	v, ok := e.Get(key)
	if !ok {
		return 0, false
	}
	return v.Number()
}

func extraStr(e ExtraData, key string) string {
	s, _ := e.GetString(key)
	return s
}
