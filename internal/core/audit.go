package core

import "time"

// AuditSeverity ranks error entries in an audit trail.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// MatchedAuditEntry records what an import changed on one existing keyword.
type MatchedAuditEntry struct {
	ID                string   `json:"id"`
	Text              string   `json:"text"`
	Changes           []string `json:"changes"`
	ConflictsResolved int      `json:"conflictsResolved"`
}

// NewAuditEntry records one keyword the import added.
type NewAuditEntry struct {
	Text       string     `json:"text"`
	ToolSource ToolSource `json:"toolSource"`
}

// ErrorAuditEntry records one merge error.
type ErrorAuditEntry struct {
	Text     string         `json:"text"`
	Type     MergeErrorType `json:"type"`
	Severity AuditSeverity  `json:"severity"`
	Message  string         `json:"message"`
}

// AuditTrail is a reporting view over a MergeResult.
type AuditTrail struct {
	Timestamp           time.Time           `json:"timestamp"`
	ToolSource          ToolSource          `json:"toolSource"`
	Summary             MergeSummary        `json:"summary"`
	Matched             []MatchedAuditEntry `json:"matched"`
	New                 []NewAuditEntry     `json:"new"`
	UnresolvedConflicts int                 `json:"unresolvedConflicts"`
	Errors              []ErrorAuditEntry   `json:"errors"`
}

// GenerateAuditTrail summarises result. result is only read.
func GenerateAuditTrail(result MergeResult, tool ToolSource, now time.Time) AuditTrail {
	trail := AuditTrail{
		Timestamp:  now.UTC(),
		ToolSource: tool,
		Summary:    result.Summary,
		Matched:    make([]MatchedAuditEntry, 0, len(result.Matched)),
		New:        make([]NewAuditEntry, 0, len(result.NewKeywords)),
		Errors:     make([]ErrorAuditEntry, 0, len(result.Errors)),
	}

	for _, m := range result.Matched {
		trail.Matched = append(trail.Matched, MatchedAuditEntry{
			ID:                m.ID,
			Text:              m.Text,
			Changes:           append([]string{}, m.Changes...),
			ConflictsResolved: m.ConflictsResolved,
		})
	}
	for _, nk := range result.NewKeywords {
		trail.New = append(trail.New, NewAuditEntry{Text: nk.Keyword, ToolSource: nk.ToolSource})
	}
	for _, c := range result.Conflicts {
		if c.Resolution == ResolutionNone || c.Resolution == ResolutionManual {
			trail.UnresolvedConflicts++
		}
	}
	for _, e := range result.Errors {
		trail.Errors = append(trail.Errors, ErrorAuditEntry{
			Text:     e.KeywordText,
			Type:     e.Type,
			Severity: severityFor(e.Type),
			Message:  e.Message,
		})
	}
	return trail
}

func severityFor(t MergeErrorType) AuditSeverity {
	switch t {
	case MergeErrFailed:
		return SeverityHigh
	case MergeErrRegionMismatch:
		return SeverityMedium
	}
	return SeverityLow
}
