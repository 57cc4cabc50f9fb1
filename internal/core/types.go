package core

import (
	"fmt"
	"strings"
	"time"
)

// ToolSource identifies the SEO tool that produced an export.
type ToolSource string

const (
	ToolSemrush              ToolSource = "semrush"
	ToolAhrefs               ToolSource = "ahrefs"
	ToolGoogleKeywordPlanner ToolSource = "google_keyword_planner"
	ToolUnknown              ToolSource = "unknown"
)

// ParseToolSource converts a user supplied tool name. The empty string
// maps to ToolUnknown, which means "detect automatically".
func ParseToolSource(s string) (ToolSource, error) {
	switch ToolSource(strings.ToLower(strings.TrimSpace(s))) {
	case ToolSemrush:
		return ToolSemrush, nil
	case ToolAhrefs:
		return ToolAhrefs, nil
	case ToolGoogleKeywordPlanner:
		return ToolGoogleKeywordPlanner, nil
	case ToolUnknown, "":
		return ToolUnknown, nil
	}
	return ToolUnknown, fmt.Errorf("%w: unsupported tool %q", ErrInvalidOptions, s)
}

// Canonical target fields. Anything else a mapping targets is stored in
// extra data under its own name.
const (
	FieldKeyword      = "keyword"
	FieldSearchVolume = "searchVolume"
	FieldDifficulty   = "difficulty"
	FieldRegion       = "region"

	// FieldIgnore is the manual-mapping target that drops a column.
	FieldIgnore = "ignore"
)

// RawRow maps a trimmed header to its raw cell value.
type RawRow map[string]string

// ColumnMapping binds one CSV column to one target field.
type ColumnMapping struct {
	SourceColumn string        `json:"sourceColumn"`
	TargetField  string        `json:"targetField"`
	Required     bool          `json:"required"`
	Transform    TransformKind `json:"transform"`
}

// MappedKeyword is one CSV row in canonical form. Keyword is never empty.
type MappedKeyword struct {
	Keyword      string     `json:"keyword"`
	SearchVolume *float64   `json:"searchVolume,omitempty"`
	Difficulty   *float64   `json:"difficulty,omitempty"`
	Region       string     `json:"region,omitempty"`
	ExtraData    ExtraData  `json:"extraData"`
	ToolSource   ToolSource `json:"toolSource"`
}

// ExistingKeyword is a stored keyword as supplied by the KeywordStore.
type ExistingKeyword struct {
	ID           string    `json:"id"`
	ListID       string    `json:"listId"`
	Text         string    `json:"text"`
	SearchVolume *float64  `json:"searchVolume,omitempty"`
	Difficulty   *float64  `json:"difficulty,omitempty"`
	Region       string    `json:"region,omitempty"`
	ExtraData    ExtraData `json:"extraData"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Resolution records how a conflict was settled.
type Resolution string

const (
	ResolutionNone         Resolution = ""
	ResolutionKeepExisting Resolution = "keep_existing"
	ResolutionUseImported  Resolution = "use_imported"
	ResolutionMerge        Resolution = "merge"
	ResolutionManual       Resolution = "manual"
)

// ParseResolution validates a caller supplied resolution.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case ResolutionKeepExisting, ResolutionUseImported, ResolutionMerge, ResolutionManual:
		return r, nil
	}
	return ResolutionNone, fmt.Errorf("%w: unsupported resolution %q", ErrInvalidOptions, s)
}

// ConflictStrategy is the automatic resolution policy for a merge.
type ConflictStrategy string

const (
	StrategyKeepExisting ConflictStrategy = "keep_existing"
	StrategyUseImported  ConflictStrategy = "use_imported"
	StrategyPreferNewer  ConflictStrategy = "prefer_newer"
	StrategyManual       ConflictStrategy = "manual"
)

// ParseConflictStrategy validates a strategy name. Empty means manual.
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	switch c := ConflictStrategy(strings.TrimSpace(s)); c {
	case StrategyKeepExisting, StrategyUseImported, StrategyPreferNewer, StrategyManual:
		return c, nil
	case "":
		return StrategyManual, nil
	}
	return "", fmt.Errorf("%w: unsupported conflict strategy %q", ErrInvalidOptions, s)
}

// MergeConflict is a field-level disagreement on a matched keyword. It is
// reported whether or not it was resolved.
type MergeConflict struct {
	KeywordText    string     `json:"keywordText"`
	Field          string     `json:"field"`
	ExistingValue  Scalar     `json:"existingValue"`
	ImportedValue  Scalar     `json:"importedValue"`
	ExistingSource string     `json:"existingSource,omitempty"`
	ImportedSource ToolSource `json:"importedSource"`
	Resolution     Resolution `json:"resolution,omitempty"`
}

// Key is the lookup key used by ApplyConflictResolutions.
func (c MergeConflict) Key() string {
	return c.KeywordText + "_" + c.Field
}

// MergedKeyword is the intended post-merge state of an existing keyword.
type MergedKeyword struct {
	ID                string    `json:"id"`
	ListID            string    `json:"listId"`
	Text              string    `json:"text"`
	SearchVolume      *float64  `json:"searchVolume,omitempty"`
	Difficulty        *float64  `json:"difficulty,omitempty"`
	Region            string    `json:"region,omitempty"`
	ExtraData         ExtraData `json:"extraData"`
	Changes           []string  `json:"changes"`
	ConflictsResolved int       `json:"conflictsResolved"`
}

// NewKeyword is an imported keyword with no existing match.
type NewKeyword struct {
	Keyword      string     `json:"keyword"`
	SearchVolume *float64   `json:"searchVolume,omitempty"`
	Difficulty   *float64   `json:"difficulty,omitempty"`
	Region       string     `json:"region,omitempty"`
	ExtraData    ExtraData  `json:"extraData"`
	ToolSource   ToolSource `json:"toolSource"`
}

// MergeErrorType classifies per-record merge failures.
type MergeErrorType string

const (
	MergeErrRegionMismatch MergeErrorType = "region_mismatch"
	MergeErrDuplicate      MergeErrorType = "duplicate"
	MergeErrFailed         MergeErrorType = "merge_failed"
)

type MergeError struct {
	KeywordText string         `json:"keywordText"`
	Type        MergeErrorType `json:"type"`
	Message     string         `json:"message"`
}

type MergeSummary struct {
	TotalImported   int  `json:"totalImported"`
	TotalMatched    int  `json:"totalMatched"`
	TotalNew        int  `json:"totalNew"`
	TotalConflicts  int  `json:"totalConflicts"`
	TotalErrors     int  `json:"totalErrors"`
	RegionValidated bool `json:"regionValidated"`
}

// MergeResult is the complete output of one merge.
type MergeResult struct {
	Matched     []MergedKeyword `json:"matched"`
	NewKeywords []NewKeyword    `json:"newKeywords"`
	Conflicts   []MergeConflict `json:"conflicts"`
	Errors      []MergeError    `json:"errors"`
	Summary     MergeSummary    `json:"summary"`
}

// MergeOptions configures a merge.
type MergeOptions struct {
	ProjectRegion        string           `json:"projectRegion" yaml:"project_region"`
	AllowRegionMismatch  bool             `json:"allowRegionMismatch" yaml:"allow_region_mismatch"`
	AutoResolveConflicts bool             `json:"autoResolveConflicts" yaml:"auto_resolve_conflicts"`
	Strategy             ConflictStrategy `json:"conflictResolutionStrategy" yaml:"conflict_resolution_strategy"`
	PreserveExistingData bool             `json:"preserveExistingData" yaml:"preserve_existing_data"`
}

// KeywordUpdate carries the fields to write for one matched keyword. Nil
// fields are left untouched by the store.
type KeywordUpdate struct {
	SearchVolume *float64
	Difficulty   *float64
	Region       *string
	ExtraData    *ExtraData
}

// UpdateFromMerged builds the store update for a merged keyword.
func UpdateFromMerged(m MergedKeyword) KeywordUpdate {
	u := KeywordUpdate{
		SearchVolume: m.SearchVolume,
		Difficulty:   m.Difficulty,
	}
	if m.Region != "" {
		region := m.Region
		u.Region = &region
	}
	extra := m.ExtraData.Clone()
	u.ExtraData = &extra
	return u
}

func floatPtr(f float64) *float64 { return &f }

// normalizeText is the matching key for keyword text.
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
