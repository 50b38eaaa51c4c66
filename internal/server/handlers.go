package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aidanlsb/chronos/internal/buildinfo"
	"github.com/aidanlsb/chronos/internal/rename"
)

// Renamer runs a rename.
type Renamer interface {
	Rename(ctx context.Context, req rename.Request) (rename.Result, error)
}

// Check is a named readiness probe.
type Check struct {
	Name  string
	Check func(context.Context) error
}

// Options wires the handler's collaborators. Events may be nil to disable
// the event stream.
type Options struct {
	Logger  *slog.Logger
	Renamer Renamer
	Events  http.Handler
	Checks  []Check
}

// Response is the JSON envelope shared with the CLI.
type Response struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

const maxBodyBytes = 64 << 10

// New returns the chronos HTTP API wrapped in the standard middleware.
func New(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /readyz", readyz(opts.Checks))
	mux.HandleFunc("POST /api/scripts/rename", renameHandler(opts.Renamer))
	if opts.Events != nil {
		mux.Handle("GET /api/events", opts.Events)
	}
	return observe(logger, mux)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{OK: true, Data: map[string]any{
		"status":  "ok",
		"version": buildinfo.Current().Version,
	}})
}

func readyz(checks []Check) http.HandlerFunc {
	type checkResult struct {
		Name       string `json:"name"`
		Status     string `json:"status"`
		DurationMs int64  `json:"duration_ms"`
		Error      string `json:"error,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		results := make([]checkResult, 0, len(checks))
		overallOK := true
		for _, check := range checks {
			start := time.Now()
			err := check.Check(r.Context())
			res := checkResult{Name: check.Name, Status: "ok", DurationMs: time.Since(start).Milliseconds()}
			if err != nil {
				overallOK = false
				res.Status = "fail"
				res.Error = err.Error()
			}
			results = append(results, res)
		}

		status := http.StatusOK
		if !overallOK {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, Response{OK: overallOK, Data: map[string]any{"checks": results}})
	}
}

func renameHandler(renamer Renamer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rename.Request
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, rename.KindInvalidInput.Code(), "invalid request body: "+err.Error(), nil)
			return
		}

		res, err := renamer.Rename(r.Context(), req)
		if err != nil {
			writeRenameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{OK: true, Data: res})
	}
}

// StatusFor maps a rename failure kind to an HTTP status.
func StatusFor(kind rename.Kind) int {
	switch kind {
	case rename.KindNotFound:
		return http.StatusNotFound
	case rename.KindConflict:
		return http.StatusConflict
	case rename.KindLocked:
		return http.StatusLocked
	case rename.KindInvalidInput:
		return http.StatusBadRequest
	case rename.KindDelegatedFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeRenameError(w http.ResponseWriter, err error) {
	var re *rename.Error
	if !errors.As(err, &re) {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
		return
	}
	details := map[string]interface{}{"kind": string(re.Kind), "step": re.Op}
	if re.UID != "" {
		details["uid"] = re.UID.String()
	}
	if re.Path != "" {
		details["path"] = re.Path
	}
	writeError(w, StatusFor(re.Kind), re.Kind.Code(), err.Error(), details)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	writeJSON(w, status, Response{Error: &ErrorInfo{Code: code, Message: message, Details: details}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}
