package core

// detect.go identifies which tool produced an export and builds the column
// mappings for it.
//
// Each schema is scored by header overlap: zero unless every required
// column is present, otherwise the share of required+optional columns
// found, plus SignatureBonus when a tool-specific column is present. The
// best score below MinConfidence means the export is unknown and the
// caller must fall back to CreateManualMapping.

import (
	"fmt"
	"math"
	"strings"
)

const (
	// MinConfidence is the score a schema needs to be selected.
	MinConfidence = 0.5

	// SignatureBonus is added when a signature column is present.
	SignatureBonus = 0.2
)

// MappingErrorType classifies mapping failures.
type MappingErrorType string

const MappingErrMissingRequired MappingErrorType = "missing_required"

type MappingError struct {
	Type    MappingErrorType `json:"type"`
	Column  string           `json:"column,omitempty"`
	Message string           `json:"message"`
}

// MappingResult is the outcome of detection or manual mapping.
type MappingResult struct {
	DetectedTool    ToolSource           `json:"detectedTool"`
	Confidence      float64              `json:"confidence"`
	Mappings        []ColumnMapping      `json:"mappings"`
	UnmappedColumns []string             `json:"unmappedColumns"`
	Errors          []MappingError       `json:"errors"`
	Validators      map[string]Validator `json:"-"`
}

// HasKeywordMapping reports whether some mapping targets the keyword field.
func (m MappingResult) HasKeywordMapping() bool {
	for _, cm := range m.Mappings {
		if cm.TargetField == FieldKeyword {
			return true
		}
	}
	return false
}

// Usable reports whether rows can be mapped with this result.
func (m MappingResult) Usable() bool {
	if !m.HasKeywordMapping() {
		return false
	}
	for _, e := range m.Errors {
		if e.Type == MappingErrMissingRequired {
			return false
		}
	}
	return true
}

// Detector scores headers against a Catalog.
type Detector struct {
	catalog *Catalog
}

func NewDetector(c *Catalog) *Detector {
	return &Detector{catalog: c}
}

// headerSet indexes headers by their lower-cased, trimmed form, keeping
// the first original spelling.
type headerSet map[string]string

func newHeaderSet(headers []string) headerSet {
	hs := make(headerSet, len(headers))
	for _, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := hs[key]; !ok {
			hs[key] = h
		}
	}
	return hs
}

func (hs headerSet) has(col string) bool {
	_, ok := hs[strings.ToLower(strings.TrimSpace(col))]
	return ok
}

func (hs headerSet) original(col string) (string, bool) {
	h, ok := hs[strings.ToLower(strings.TrimSpace(col))]
	return h, ok
}

// containsSignature reports whether any header contains sig.
func (hs headerSet) containsSignature(sig string) bool {
	sig = strings.ToLower(sig)
	for h := range hs {
		if strings.Contains(h, sig) {
			return true
		}
	}
	return false
}

// Score computes the confidence of schema s for the given headers.
func Score(s ToolSchema, headers []string) float64 {
	return score(s, newHeaderSet(headers))
}

func score(s ToolSchema, hs headerSet) float64 {
	for _, col := range s.RequiredColumns {
		if !hs.has(col) {
			return 0
		}
	}

	total := len(s.RequiredColumns) + len(s.OptionalColumns)
	if total == 0 {
		return 0
	}
	matched := len(s.RequiredColumns)
	for _, col := range s.OptionalColumns {
		if hs.has(col) {
			matched++
		}
	}

	conf := float64(matched) / float64(total)
	for _, sig := range s.SignatureColumns {
		if hs.containsSignature(sig) {
			conf += SignatureBonus
			break
		}
	}
	return math.Min(conf, 1.0)
}

// Detect selects the best matching schema for headers.
func (d *Detector) Detect(headers []string) MappingResult {
	hs := newHeaderSet(headers)

	var (
		best     ToolSchema
		bestConf float64
		found    bool
	)
	for _, s := range d.catalog.All() {
		conf := score(s, hs)
		if !found || conf > bestConf {
			best, bestConf, found = s, conf, true
		}
	}

	if !found || bestConf < MinConfidence {
		return MappingResult{
			DetectedTool:    ToolUnknown,
			Confidence:      bestConf,
			Mappings:        []ColumnMapping{},
			UnmappedColumns: append([]string{}, headers...),
			Errors: []MappingError{{
				Type:    MappingErrMissingRequired,
				Message: "Could not detect the export format; manual column mapping is required",
			}},
		}
	}

	res := mappingFromSchema(best, headers, hs)
	res.Confidence = bestConf
	return res
}

// MappingFor builds the mapping for a declared tool without scoring.
// Confidence is 1 when every required column is present.
func (d *Detector) MappingFor(tool ToolSource, headers []string) (MappingResult, error) {
	s, ok := d.catalog.Get(tool)
	if !ok {
		return MappingResult{}, fmt.Errorf("%w: no schema for tool %q", ErrInvalidOptions, tool)
	}
	res := mappingFromSchema(s, headers, newHeaderSet(headers))
	if len(res.Errors) == 0 {
		res.Confidence = 1
	}
	return res, nil
}

func mappingFromSchema(s ToolSchema, headers []string, hs headerSet) MappingResult {
	res := MappingResult{
		DetectedTool: s.Tool,
		Mappings:     []ColumnMapping{},
		Validators:   s.ValueValidators,
	}

	consumed := make(map[string]bool)
	for _, cm := range s.ColumnMappings {
		orig, ok := hs.original(cm.SourceColumn)
		if !ok {
			if cm.Required {
				res.Errors = append(res.Errors, MappingError{
					Type:    MappingErrMissingRequired,
					Column:  cm.SourceColumn,
					Message: fmt.Sprintf("Required column %q is missing", cm.SourceColumn),
				})
			}
			continue
		}
		cm.SourceColumn = orig
		res.Mappings = append(res.Mappings, cm)
		consumed[orig] = true
	}

	res.UnmappedColumns = []string{}
	for _, h := range headers {
		if !consumed[h] {
			res.UnmappedColumns = append(res.UnmappedColumns, h)
		}
	}
	return res
}

// CreateManualMapping builds mappings from a user supplied
// source-column -> target-field table. Entries whose source header is
// absent, or whose target is "ignore", are skipped.
func (d *Detector) CreateManualMapping(headers []string, columnMappings map[string]string) MappingResult {
	res := MappingResult{
		DetectedTool: ToolUnknown,
		Confidence:   1.0,
		Mappings:     []ColumnMapping{},
		Validators:   DefaultValidators(),
	}

	// Index the user's table the same way headers are indexed so
	// "Search Volume" and "search volume " refer to the same column.
	targets := make(map[string]string, len(columnMappings))
	for src, target := range columnMappings {
		targets[strings.ToLower(strings.TrimSpace(src))] = strings.TrimSpace(target)
	}

	consumed := make(map[string]bool)
	hasKeyword := false
	for _, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		target, ok := targets[key]
		if !ok || consumed[key] {
			continue
		}
		consumed[key] = true
		if target == "" || target == FieldIgnore {
			continue
		}
		res.Mappings = append(res.Mappings, ColumnMapping{
			SourceColumn: h,
			TargetField:  target,
			Required:     target == FieldKeyword,
			Transform:    transformForField(target),
		})
		if target == FieldKeyword {
			hasKeyword = true
		}
	}

	res.UnmappedColumns = []string{}
	mapped := make(map[string]bool, len(res.Mappings))
	for _, m := range res.Mappings {
		mapped[m.SourceColumn] = true
	}
	for _, h := range headers {
		if !mapped[h] {
			res.UnmappedColumns = append(res.UnmappedColumns, h)
		}
	}

	if !hasKeyword {
		res.Errors = append(res.Errors, MappingError{
			Type:    MappingErrMissingRequired,
			Column:  FieldKeyword,
			Message: "No column is mapped to keyword",
		})
	}
	return res
}
