package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOptions is returned when import options fail validation.
var ErrInvalidOptions = errors.New("invalid import options")

// ImportOptions is everything an import needs besides the file itself.
// It is validated before any parsing starts.
type ImportOptions struct {
	ProjectID string `json:"projectId" yaml:"project_id"`
	ListID    string `json:"listId" yaml:"list_id"`

	// Tool skips detection when set.
	Tool ToolSource `json:"toolSource,omitempty" yaml:"tool"`

	// ColumnMapping maps source headers to target fields and replaces
	// detection entirely.
	ColumnMapping map[string]string `json:"columnMapping,omitempty" yaml:"column_mapping"`

	MergeOptions `yaml:",inline"`
}

// Validate checks the options and normalises Tool and Strategy. Every
// problem is reported in one error wrapping ErrInvalidOptions.
func (o *ImportOptions) Validate() error {
	var problems []string

	o.ProjectID = strings.TrimSpace(o.ProjectID)
	o.ListID = strings.TrimSpace(o.ListID)
	if o.ProjectID == "" {
		problems = append(problems, "projectId is required")
	}
	if o.ListID == "" {
		problems = append(problems, "listId is required")
	}

	if tool, err := ParseToolSource(string(o.Tool)); err != nil {
		problems = append(problems, fmt.Sprintf("unsupported tool %q", o.Tool))
	} else {
		o.Tool = tool
	}

	if strategy, err := ParseConflictStrategy(string(o.Strategy)); err != nil {
		problems = append(problems, fmt.Sprintf("unsupported conflict resolution strategy %q", o.Strategy))
	} else {
		o.Strategy = strategy
	}

	for src, target := range o.ColumnMapping {
		if strings.TrimSpace(src) == "" {
			problems = append(problems, "column mapping has an empty source column")
		}
		if strings.TrimSpace(target) == "" {
			problems = append(problems, fmt.Sprintf("column mapping for %q has no target field", src))
		}
	}

	o.ProjectRegion = strings.ToUpper(strings.TrimSpace(o.ProjectRegion))

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(problems, "; "))
	}
	return nil
}
