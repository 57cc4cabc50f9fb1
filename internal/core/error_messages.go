package core

// error_messages.go maps technical errors to messages an importer can act
// on. Each message carries a code the user can quote to support.
//
// # File Errors (FILE001-FILE005)
//
//	FILE001 - File too large            Patterns: "file too large"
//	FILE002 - Not a CSV/TSV file        Patterns: "invalid file type"
//	FILE003 - No headers or rows        Patterns: "no headers found", "no data rows found"
//	FILE004 - No file                   Patterns: "no file provided"
//	FILE005 - Unreadable file           Patterns: "read csv", "read file"
//
// # Mapping Errors (MAP001-MAP002)
//
//	MAP001 - Unknown export format      Patterns: "could not detect the export format"
//	MAP002 - No keyword column          Patterns: "no column is mapped to keyword", "required column"
//
// # Merge Errors (MRG001-MRG003)
//
//	MRG001 - Region mismatch            Patterns: "does not match project region"
//	MRG002 - Duplicate keyword          Patterns: "appears more than once"
//	MRG003 - Record not merged          Patterns: "merge failed"
//
// # Job Errors (JOB001-JOB004)
//
//	JOB001 - Job not found              Patterns: "import job not found"
//	JOB002 - Job still running          Patterns: "still processing"
//	JOB003 - Import cancelled           Patterns: "import cancelled", "context canceled"
//	JOB004 - Import timed out           Patterns: "context deadline exceeded"
//
// # Storage Errors (STO001-STO002)
//
//	STO001 - Keyword list not found     Patterns: "keyword list not found"
//	STO002 - Storage unavailable        Patterns: "connection refused", "connection reset", "database is locked"
//
// # Options (OPT001), Rate Limiting (RATE001), Default (ERR000)
//
//	OPT001 - Invalid options            Patterns: "invalid import options"
//	RATE001 - Too busy                  Patterns: "too many concurrent imports", "rate limit"
//	ERR000 - Anything else; check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage is a user-facing rendering of an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors (FILE001-FILE005)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Export fewer keywords per file or split the export",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid file type",
		msg: UserMessage{
			Message: "File is not a CSV or TSV export",
			Action:  "Export the keyword list from your SEO tool as CSV",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no headers found",
		msg: UserMessage{
			Message: "File has no header row",
			Action:  "Make sure the first rows of the export contain column names",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no data rows found",
		msg: UserMessage{
			Message: "File contains no keywords",
			Action:  "Check that the export is not empty",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was uploaded",
			Action:  "Select a keyword export to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "read csv",
		msg: UserMessage{
			Message: "File could not be read",
			Action:  "Re-export the file and try again",
			Code:    "FILE005",
		},
	},
	{
		pattern: "read file",
		msg: UserMessage{
			Message: "File could not be read",
			Action:  "Re-export the file and try again",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Mapping Errors (MAP001-MAP002)
	// =========================================================================
	{
		pattern: "could not detect the export format",
		msg: UserMessage{
			Message: "The export format was not recognised",
			Action:  "Choose the tool manually or map the columns yourself",
			Code:    "MAP001",
		},
	},
	{
		pattern: "no column is mapped to keyword",
		msg: UserMessage{
			Message: "No column contains the keyword text",
			Action:  "Map one column to the keyword field",
			Code:    "MAP002",
		},
	},
	{
		pattern: "required column",
		msg: UserMessage{
			Message: "A required column is missing from the export",
			Action:  "Check that the keyword column is present",
			Code:    "MAP002",
		},
	},

	// =========================================================================
	// Merge Errors (MRG001-MRG003)
	// =========================================================================
	{
		pattern: "does not match project region",
		msg: UserMessage{
			Message: "Keyword belongs to a different region than the project",
			Action:  "Export data for the project's region or allow region mismatches",
			Code:    "MRG001",
		},
	},
	{
		pattern: "appears more than once",
		msg: UserMessage{
			Message: "Keyword appears more than once in the file",
			Action:  "Review the duplicate rows in the export",
			Code:    "MRG002",
		},
	},
	{
		pattern: "merge failed",
		msg: UserMessage{
			Message: "Keyword could not be merged",
			Action:  "Check the row for unusual values and import it again",
			Code:    "MRG003",
		},
	},

	// =========================================================================
	// Job Errors (JOB001-JOB004)
	// =========================================================================
	{
		pattern: "import job not found",
		msg: UserMessage{
			Message: "Import not found",
			Action:  "The import may have expired. Start a new import",
			Code:    "JOB001",
		},
	},
	{
		pattern: "still processing",
		msg: UserMessage{
			Message: "Import is still running",
			Action:  "Wait for the import to finish or cancel it first",
			Code:    "JOB002",
		},
	},
	{
		pattern: "import cancelled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Start a new import when ready",
			Code:    "JOB003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Start a new import when ready",
			Code:    "JOB003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Import timed out",
			Action:  "Try a smaller export or try again later",
			Code:    "JOB004",
		},
	},

	// =========================================================================
	// Storage Errors (STO001-STO002)
	// =========================================================================
	{
		pattern: "keyword list not found",
		msg: UserMessage{
			Message: "Target keyword list does not exist",
			Action:  "Check the list id in the import options",
			Code:    "STO001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Keyword storage is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "STO002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Keyword storage is unavailable",
			Action:  "Please try again",
			Code:    "STO002",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Keyword storage is busy",
			Action:  "Please try again",
			Code:    "STO002",
		},
	},

	// =========================================================================
	// Options and rate limiting (OPT001, RATE001)
	// =========================================================================
	{
		pattern: "invalid import options",
		msg: UserMessage{
			Message: "Import options are invalid",
			Action:  "Check the tool, strategy and list settings",
			Code:    "OPT001",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is the ERR000 fallback.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user message. Unknown errors
// map to ERR000; nil maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
