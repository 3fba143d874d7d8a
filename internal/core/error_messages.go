package core

// error_messages.go maps technical errors to short user-facing messages
// with a code for support reference.
//
// # Error Codes Reference
//
// # Remote Errors (NET001-NET099)
//
//	NET001 - Network error: The Pokémon API could not be reached or answered with an error
//	         Action: Check your connection and try fetching again
//	         Matches: pokeapi.ErrNetwork
//
// # File Errors (FMT001, FILE001-FILE099)
//
//	FMT001  - Malformed CSV: The file has no header row or could not be parsed
//	          Action: Ensure the file is comma-separated with a header row
//	          Matches: csvio.ErrFormat
//
//	FILE001 - File too large: The upload exceeds the configured size limit
//	          Action: Split the file into smaller files
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - No file: No file was provided
//	          Action: Please select a CSV file
//	          Patterns: "no file provided"
//
// # Export Errors (EXP001)
//
//	EXP001 - No data: There are no records to export
//	         Action: Fetch or import data first
//	         Matches: csvio.ErrNoData
//
// # Schema and Record Errors (COL001-COL099, REC001-REC099)
//
//	COL001 - Column exists: A column with this identifier already exists
//	         Action: Choose a different column name
//	         Matches: store.ErrColumnExists
//
//	COL002 - Invalid column: The column name or type is not usable
//	         Action: Use a name with letters or digits and a type of text, number or boolean
//	         Matches: pokemon.ErrInvalidColumn, pokemon.ErrUnknownType
//
//	REC001 - Unknown field: The edit names a field that does not exist
//	         Action: Add the column first or check the field name
//	         Matches: store.ErrUnknownField
//
//	REC002 - Invalid filter: The record filter could not be understood
//	         Action: Check the field, operator and value of each filter
//	         Matches: store.ErrInvalidFilter
//
//	REC003 - Record not found: No record has this identifier
//	         Action: Refresh the table and try again
//	         Matches: ErrRecordNotFound
//
//	COL003 - Column not found: No column has this identifier
//	         Action: Refresh the table and try again
//	         Matches: ErrColumnNotFound
//
//	REQ001 - Invalid request: The request could not be understood
//	         Action: Check the request body and parameters
//	         Matches: ErrInvalidRequest
//
// # Job Errors (BUSY001, JOB001-JOB099)
//
//	BUSY001 - Busy: A fetch or import is already running
//	          Action: Wait for it to finish or cancel it
//	          Matches: ErrBusy
//
//	JOB001  - Job not found: The job finished long ago or never existed
//	          Action: Start a new fetch or import
//	          Matches: ErrJobNotFound
//
//	JOB002  - Cancelled: The operation was cancelled
//	          Action: Start it again when ready
//	          Matches: context.Canceled
//
//	JOB003  - Timed out: The operation took too long
//	          Action: Try again later
//	          Matches: context.DeadlineExceeded
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again
//
// Sentinels are matched with errors.Is before any text pattern is tried.
// The first matching entry wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/pokelab/internal/csvio"
	"github.com/JonMunkholm/pokelab/internal/pokeapi"
	"github.com/JonMunkholm/pokelab/internal/pokemon"
	"github.com/JonMunkholm/pokelab/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Code for support reference
}

// errorMapping pairs a sentinel or a text pattern with its message.
type errorMapping struct {
	target  error
	pattern string
	msg     UserMessage
}

var errorMappings = []errorMapping{
	{
		target: ErrBusy,
		msg: UserMessage{
			Message: "A fetch or import is already running",
			Action:  "Wait for it to finish or cancel it",
			Code:    "BUSY001",
		},
	},
	{
		target: pokeapi.ErrNetwork,
		msg: UserMessage{
			Message: "Could not load data from the Pokémon API",
			Action:  "Check your connection and try fetching again",
			Code:    "NET001",
		},
	},
	{
		target: csvio.ErrFormat,
		msg: UserMessage{
			Message: "The file is not a valid CSV",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FMT001",
		},
	},
	{
		target: csvio.ErrNoData,
		msg: UserMessage{
			Message: "There are no records to export",
			Action:  "Fetch or import data first",
			Code:    "EXP001",
		},
	},
	{
		target: store.ErrColumnExists,
		msg: UserMessage{
			Message: "A column with this name already exists",
			Action:  "Choose a different column name",
			Code:    "COL001",
		},
	},
	{
		target: pokemon.ErrInvalidColumn,
		msg: UserMessage{
			Message: "The column name is not usable",
			Action:  "Use a name containing letters or digits",
			Code:    "COL002",
		},
	},
	{
		target: pokemon.ErrUnknownType,
		msg: UserMessage{
			Message: "Unknown column type",
			Action:  "Use text, number or boolean",
			Code:    "COL002",
		},
	},
	{
		target: store.ErrUnknownField,
		msg: UserMessage{
			Message: "The edit names a field that does not exist",
			Action:  "Add the column first or check the field name",
			Code:    "REC001",
		},
	},
	{
		target: store.ErrInvalidFilter,
		msg: UserMessage{
			Message: "The record filter could not be understood",
			Action:  "Check the field, operator and value of each filter",
			Code:    "REC002",
		},
	},
	{
		target: ErrRecordNotFound,
		msg: UserMessage{
			Message: "No record has this identifier",
			Action:  "Refresh the table and try again",
			Code:    "REC003",
		},
	},
	{
		target: ErrColumnNotFound,
		msg: UserMessage{
			Message: "No column has this identifier",
			Action:  "Refresh the table and try again",
			Code:    "COL003",
		},
	},
	{
		target: ErrInvalidRequest,
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Check the request body and parameters",
			Code:    "REQ001",
		},
	},
	{
		target: ErrJobNotFound,
		msg: UserMessage{
			Message: "Job not found",
			Action:  "It may have expired. Start a new fetch or import",
			Code:    "JOB001",
		},
	},
	{
		target: context.Canceled,
		msg: UserMessage{
			Message: "The operation was cancelled",
			Action:  "Start it again when ready",
			Code:    "JOB002",
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "The operation timed out",
			Action:  "Try again later",
			Code:    "JOB003",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "The file exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "The file exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Please select a CSV file",
			Code:    "FILE002",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Sentinel
// errors are matched with errors.Is; text patterns case-insensitively.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, m := range errorMappings {
		if m.target != nil && errors.Is(err, m.target) {
			return m.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, m := range errorMappings {
		if m.pattern != "" && strings.Contains(errStr, m.pattern) {
			return m.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError carries the technical error for logs and the mapped message for display.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
