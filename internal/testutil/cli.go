package testutil

import (
	"encoding/json"
	"testing"
)

// CLIResult is the parsed JSON envelope of one command run with --json.
type CLIResult struct {
	OK       bool                   `json:"ok"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Error    *CLIError              `json:"error,omitempty"`
	RawJSON  string                 `json:"-"`
	ExitCode int                    `json:"-"`
}

// CLIError is the error member of the envelope.
type CLIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
}

// ParseCLIResult parses captured stdout. Anything that is not an envelope
// becomes a failed result with code PARSE_ERROR.
func ParseCLIResult(output []byte, exitCode int) *CLIResult {
	result := &CLIResult{}
	if err := json.Unmarshal(output, result); err != nil {
		result = &CLIResult{Error: &CLIError{
			Code:    "PARSE_ERROR",
			Message: "failed to parse JSON output: " + err.Error(),
		}}
	}
	result.RawJSON = string(output)
	result.ExitCode = exitCode
	return result
}

// MustSucceed fails the test unless the command succeeded with exit code 0.
func (r *CLIResult) MustSucceed(t *testing.T) *CLIResult {
	t.Helper()
	if !r.OK || r.ExitCode != 0 {
		msg := "no error reported"
		if r.Error != nil {
			msg = r.Error.Code + ": " + r.Error.Message
		}
		t.Fatalf("expected success, got exit %d (%s)\nRaw output: %s", r.ExitCode, msg, r.RawJSON)
	}
	return r
}

// MustFail fails the test unless the command failed with code.
func (r *CLIResult) MustFail(t *testing.T, code string) *CLIResult {
	t.Helper()
	if r.OK {
		t.Fatalf("expected failure with %s, but the command succeeded\nRaw output: %s", code, r.RawJSON)
	}
	if r.Error == nil || r.Error.Code != code {
		got := "<nil>"
		if r.Error != nil {
			got = r.Error.Code + ": " + r.Error.Message
		}
		t.Fatalf("expected error code %s, got %s\nRaw output: %s", code, got, r.RawJSON)
	}
	return r
}

// Detail returns a string member of error.details, or "".
func (r *CLIResult) Detail(key string) string {
	if r.Error == nil {
		return ""
	}
	s, _ := r.Error.Details[key].(string)
	return s
}

// DataList returns a list member of data, or nil.
func (r *CLIResult) DataList(key string) []interface{} {
	list, _ := r.Data[key].([]interface{})
	return list
}

// DataMap returns an object member of data, or nil.
func (r *CLIResult) DataMap(key string) map[string]interface{} {
	m, _ := r.Data[key].(map[string]interface{})
	return m
}

// DataString returns a string member of data, or "".
func (r *CLIResult) DataString(key string) string {
	s, _ := r.Data[key].(string)
	return s
}
