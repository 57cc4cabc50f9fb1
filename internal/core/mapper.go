package core

import "strings"

// RowMapper applies column mappings to raw rows.
type RowMapper struct {
	validators map[string]Validator
}

// NewRowMapper returns a mapper enforcing validators; nil means
// DefaultValidators.
func NewRowMapper(validators map[string]Validator) *RowMapper {
	if validators == nil {
		validators = DefaultValidators()
	}
	return &RowMapper{validators: validators}
}

// MapRow converts one row. It returns false when the row has no usable
// keyword; callers count that as attrition. ToolSource is left unknown.
func (m *RowMapper) MapRow(row RawRow, mappings []ColumnMapping) (MappedKeyword, bool) {
	out := MappedKeyword{ToolSource: ToolUnknown}

	for _, cm := range mappings {
		raw, ok := row[cm.SourceColumn]
		if !ok {
			continue
		}
		val, ok := cm.Transform.Apply(raw)
		if !ok {
			continue
		}
		if cm.TargetField == FieldSearchVolume || cm.TargetField == FieldDifficulty {
			f, ok := numberOf(val)
			if !ok {
				continue
			}
			val = NumberValue(f)
		}
		if v, has := m.validators[cm.TargetField]; has && v.Check(cm.TargetField, val) != nil {
			continue
		}

		switch cm.TargetField {
		case FieldKeyword:
			out.Keyword = strings.TrimSpace(val.String())
		case FieldSearchVolume:
			f, _ := val.Number()
			out.SearchVolume = floatPtr(f)
		case FieldDifficulty:
			f, _ := val.Number()
			out.Difficulty = floatPtr(f)
		case FieldRegion:
			out.Region = strings.TrimSpace(val.String())
		default:
			out.ExtraData.Set(cm.TargetField, val)
		}
	}

	if out.Keyword == "" {
		return MappedKeyword{}, false
	}
	return out, true
}

// MapRows maps every row and stamps tool on the results. dropped counts
// rows without a keyword.
func (m *RowMapper) MapRows(rows []RawRow, mappings []ColumnMapping, tool ToolSource) (mapped []MappedKeyword, dropped int) {
	mapped = make([]MappedKeyword, 0, len(rows))
	for _, row := range rows {
		mk, ok := m.MapRow(row, mappings)
		if !ok {
			dropped++
			continue
		}
		mk.ToolSource = tool
		mapped = append(mapped, mk)
	}
	return mapped, dropped
}

func numberOf(v Scalar) (float64, bool) {
	if f, ok := v.Number(); ok {
		return f, true
	}
	if s, ok := v.Str(); ok {
		return ParseNumeric(s)
	}
	return 0, false
}
