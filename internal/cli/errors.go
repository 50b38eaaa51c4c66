package cli

import (
	"errors"

	"github.com/aidanlsb/chronos/internal/rename"
)

// Error codes for structured error responses.
// These codes are stable and can be relied upon by agents. Rename failures
// use the codes from rename.Kind.Code so the CLI and the HTTP API agree.
const (
	// Config errors
	ErrConfigInvalid = "CONFIG_INVALID"

	// Database errors
	ErrDatabaseError = "DATABASE_ERROR"

	// File errors
	ErrFileReadError  = "FILE_READ_ERROR"
	ErrFileWriteError = "FILE_WRITE_ERROR"

	// Intent errors
	ErrIntentNotFound = "INTENT_NOT_FOUND"
	ErrIntentInvalid  = "INTENT_INVALID"

	// Input errors
	ErrInvalidInput = "INVALID_INPUT"

	// Server errors
	ErrServerFailed = "SERVER_FAILED"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// handleRenameError reports a failed rename with its kind, step and location.
func handleRenameError(err error) error {
	var re *rename.Error
	if !errors.As(err, &re) {
		return handleError(ErrInternal, err, "")
	}

	details := map[string]interface{}{
		"kind": string(re.Kind),
		"step": re.Op,
	}
	if re.UID != "" {
		details["uid"] = re.UID.String()
	}
	if re.Path != "" {
		details["path"] = re.Path
	}
	return handleErrorWithDetails(re.Kind.Code(), err.Error(), renameSuggestion(re.Kind), details)
}

func renameSuggestion(kind rename.Kind) string {
	switch kind {
	case rename.KindNotFound:
		return "Check the script name with 'chronos uid <name>'"
	case rename.KindConflict:
		return "Choose a different new name, or remove the existing script first"
	case rename.KindLocked:
		return "Another rename is using one of these scripts; retry when it finishes"
	case rename.KindDelegatedFailure, rename.KindStoreFailure:
		return "Run 'chronos intents list' to inspect the partial rename and 'chronos intents resume <id>' to finish it"
	default:
		return ""
	}
}
