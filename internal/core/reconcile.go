package core

// reconcile.go merges mapped keywords into an existing keyword set.
//
// Matching is by lower-cased, trimmed text. A match compares the
// canonical fields and reports every disagreement as a MergeConflict,
// resolved or not; a miss becomes a NewKeyword stamped with import
// provenance. Merge never touches storage: it returns what should change
// and the caller persists it.

import (
	"fmt"
	"strings"
	"time"
)

// DefaultExistingSource is reported for keywords no import has touched.
const DefaultExistingSource = "AI Generated"

// Provenance keys written into extra data.
const (
	ExtraImportSource        = "import_source"
	ExtraImportTimestamp     = "import_timestamp"
	ExtraLastImportSource    = "last_import_source"
	ExtraLastImportTimestamp = "last_import_timestamp"
)

// Reconciler merges imports into existing keywords. Now is injectable so
// provenance timestamps are reproducible.
type Reconciler struct {
	Now func() time.Time
}

func NewReconciler() *Reconciler {
	return &Reconciler{Now: time.Now}
}

// recordOutcome is the result for one imported record; exactly one of
// matched and created is set.
type recordOutcome struct {
	matched   *MergedKeyword
	conflicts []MergeConflict
	created   *NewKeyword
}

// Merge reconciles imported against existing. existing is not modified.
func (r *Reconciler) Merge(existing []ExistingKeyword, imported []MappedKeyword, tool ToolSource, opts MergeOptions) MergeResult {
	stamp := r.now().UTC().Format(time.RFC3339)
	// Region codes compare case-insensitively; new keywords get the
	// upper-case form, matching the region_code transform.
	opts.ProjectRegion = strings.ToUpper(strings.TrimSpace(opts.ProjectRegion))

	index := make(map[string]int, len(existing))
	for i, ex := range existing {
		key := normalizeText(ex.Text)
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}

	res := MergeResult{
		Matched:     []MergedKeyword{},
		NewKeywords: []NewKeyword{},
		Conflicts:   []MergeConflict{},
		Errors:      []MergeError{},
	}
	regionValidated := true

	for _, rec := range imported {
		if !opts.AllowRegionMismatch && opts.ProjectRegion != "" {
			region := strings.TrimSpace(rec.Region)
			switch {
			case region == "":
				rec.Region = opts.ProjectRegion
			case !strings.EqualFold(region, opts.ProjectRegion):
				regionValidated = false
				res.Errors = append(res.Errors, MergeError{
					KeywordText: rec.Keyword,
					Type:        MergeErrRegionMismatch,
					Message:     fmt.Sprintf("Keyword region %q does not match project region %q", region, opts.ProjectRegion),
				})
				continue
			}
		}

		out, err := r.mergeRecord(existing, index, rec, tool, opts, stamp)
		if err != nil {
			res.Errors = append(res.Errors, MergeError{
				KeywordText: rec.Keyword,
				Type:        MergeErrFailed,
				Message:     err.Error(),
			})
			continue
		}
		if out.matched != nil {
			res.Matched = append(res.Matched, *out.matched)
			res.Conflicts = append(res.Conflicts, out.conflicts...)
		} else {
			res.NewKeywords = append(res.NewKeywords, *out.created)
		}
	}

	res.Errors = append(res.Errors, findDuplicates(res.NewKeywords)...)

	res.Summary = MergeSummary{
		TotalImported:   len(imported),
		TotalMatched:    len(res.Matched),
		TotalNew:        len(res.NewKeywords),
		TotalConflicts:  len(res.Conflicts),
		TotalErrors:     len(res.Errors),
		RegionValidated: regionValidated,
	}
	return res
}

func (r *Reconciler) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// mergeRecord handles one record. A panic is returned as an error so one
// bad record cannot stop the batch; nothing from a failed record reaches
// the result.
func (r *Reconciler) mergeRecord(existing []ExistingKeyword, index map[string]int, rec MappedKeyword, tool ToolSource, opts MergeOptions, stamp string) (out recordOutcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = recordOutcome{}
			err = fmt.Errorf("merge failed: %v", p)
		}
	}()

	if i, ok := index[normalizeText(rec.Keyword)]; ok {
		m, conflicts := mergeMatched(existing[i], rec, tool, opts, stamp)
		return recordOutcome{matched: &m, conflicts: conflicts}, nil
	}
	nk := buildNew(rec, tool, opts, stamp)
	return recordOutcome{created: &nk}, nil
}

// fieldPair is one canonical field compared on the match path.
type fieldPair struct {
	field    string
	existing Scalar
	imported Scalar
	apply    func()
}

func mergeMatched(ex ExistingKeyword, rec MappedKeyword, tool ToolSource, opts MergeOptions, stamp string) (MergedKeyword, []MergeConflict) {
	m := MergedKeyword{
		ID:           ex.ID,
		ListID:       ex.ListID,
		Text:         ex.Text,
		SearchVolume: copyFloat(ex.SearchVolume),
		Difficulty:   copyFloat(ex.Difficulty),
		Region:       ex.Region,
		ExtraData:    ex.ExtraData.Clone(),
		Changes:      []string{},
	}

	existingSource := DefaultExistingSource
	if s, ok := ex.ExtraData.GetString(ExtraLastImportSource); ok && s != "" {
		existingSource = s
	}

	pairs := []fieldPair{
		{FieldSearchVolume, scalarFromPtr(ex.SearchVolume), scalarFromPtr(rec.SearchVolume), func() { m.SearchVolume = copyFloat(rec.SearchVolume) }},
		{FieldDifficulty, scalarFromPtr(ex.Difficulty), scalarFromPtr(rec.Difficulty), func() { m.Difficulty = copyFloat(rec.Difficulty) }},
		{FieldRegion, scalarFromString(ex.Region), scalarFromString(rec.Region), func() { m.Region = strings.TrimSpace(rec.Region) }},
	}

	var conflicts []MergeConflict
	for _, p := range pairs {
		switch {
		case p.imported.IsZero():
		case p.existing.IsZero():
			p.apply()
			m.Changes = append(m.Changes, fmt.Sprintf("%s: set to %s (%s)", p.field, p.imported, tool))
		case p.existing.Equal(p.imported):
		default:
			c := MergeConflict{
				KeywordText:    ex.Text,
				Field:          p.field,
				ExistingValue:  p.existing,
				ImportedValue:  p.imported,
				ExistingSource: existingSource,
				ImportedSource: tool,
				Resolution:     resolutionFor(opts),
			}
			if c.Resolution == ResolutionUseImported {
				p.apply()
				m.Changes = append(m.Changes, fmt.Sprintf("%s: %s -> %s (%s)", p.field, p.existing, p.imported, tool))
				m.ConflictsResolved++
			}
			conflicts = append(conflicts, c)
		}
	}

	setToolValues(&m.ExtraData, rec, tool)
	for _, k := range rec.ExtraData.Keys() {
		key := string(tool) + "_" + k
		if opts.PreserveExistingData && ex.ExtraData.Has(key) {
			continue
		}
		v, _ := rec.ExtraData.Get(k)
		m.ExtraData.Set(key, v)
	}
	m.ExtraData.Set(ExtraLastImportSource, StringValue(string(tool)))
	m.ExtraData.Set(ExtraLastImportTimestamp, StringValue(stamp))

	return m, conflicts
}

func buildNew(rec MappedKeyword, tool ToolSource, opts MergeOptions, stamp string) NewKeyword {
	region := strings.TrimSpace(rec.Region)
	if region == "" {
		region = opts.ProjectRegion
	}

	extra := rec.ExtraData.Clone()
	extra.Set(ExtraImportSource, StringValue(string(tool)))
	extra.Set(ExtraLastImportSource, StringValue(string(tool)))
	extra.Set(ExtraImportTimestamp, StringValue(stamp))
	setToolValues(&extra, rec, tool)

	return NewKeyword{
		Keyword:      strings.TrimSpace(rec.Keyword),
		SearchVolume: copyFloat(rec.SearchVolume),
		Difficulty:   copyFloat(rec.Difficulty),
		Region:       region,
		ExtraData:    extra,
		ToolSource:   tool,
	}
}

// setToolValues records the tool's own volume and difficulty under
// namespaced keys so they survive a lost conflict.
func setToolValues(extra *ExtraData, rec MappedKeyword, tool ToolSource) {
	if rec.SearchVolume != nil {
		extra.Set(string(tool)+"_"+FieldSearchVolume, NumberValue(*rec.SearchVolume))
	}
	if rec.Difficulty != nil {
		extra.Set(string(tool)+"_"+FieldDifficulty, NumberValue(*rec.Difficulty))
	}
}

func resolutionFor(opts MergeOptions) Resolution {
	if !opts.AutoResolveConflicts {
		return ResolutionManual
	}
	switch opts.Strategy {
	case StrategyKeepExisting:
		return ResolutionKeepExisting
	case StrategyUseImported, StrategyPreferNewer:
		return ResolutionUseImported
	}
	return ResolutionManual
}

// findDuplicates flags every repeat of a keyword text among new keywords.
// The first occurrence is not flagged and nothing is removed.
func findDuplicates(created []NewKeyword) []MergeError {
	var errs []MergeError
	seen := make(map[string]bool, len(created))
	for _, nk := range created {
		key := normalizeText(nk.Keyword)
		if seen[key] {
			errs = append(errs, MergeError{
				KeywordText: nk.Keyword,
				Type:        MergeErrDuplicate,
				Message:     fmt.Sprintf("Keyword %q appears more than once in this import", nk.Keyword),
			})
			continue
		}
		seen[key] = true
	}
	return errs
}

// ConflictResolution is a reviewer's decision for one conflict.
type ConflictResolution struct {
	Field      string     `json:"field"`
	Resolution Resolution `json:"resolution"`
}

// ApplyConflictResolutions returns a copy of conflicts with resolutions
// overlaid by "<keywordText>_<field>" key. It does not re-run the merge.
func ApplyConflictResolutions(conflicts []MergeConflict, resolutions map[string]ConflictResolution) []MergeConflict {
	out := make([]MergeConflict, len(conflicts))
	for i, c := range conflicts {
		if r, ok := resolutions[c.Key()]; ok && (r.Field == "" || r.Field == c.Field) {
			c.Resolution = r.Resolution
		}
		out[i] = c
	}
	return out
}

func scalarFromPtr(f *float64) Scalar {
	if f == nil {
		return Scalar{}
	}
	return NumberValue(*f)
}

func scalarFromString(s string) Scalar {
	s = strings.TrimSpace(s)
	if s == "" {
		return Scalar{}
	}
	return StringValue(s)
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
