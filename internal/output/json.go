package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/dotcommander/taskcomm/internal/models"
)

// Response represents a standard JSON response envelope.
type Response struct {
	SchemaVersion string            `json:"schema_version"`
	Success       bool              `json:"success"`
	Data          interface{}       `json:"data,omitempty"`
	Error         string            `json:"error,omitempty"`
	ErrorCode     string            `json:"error_code,omitempty"`
	ErrorContext  map[string]string `json:"error_context,omitempty"`
	Suggestion    string            `json:"suggested_action,omitempty"`
}

// Success wraps a successful response with data.
func Success(data interface{}) Response {
	return Response{
		SchemaVersion: "v1",
		Success:       true,
		Data:          data,
	}
}

// Error wraps an error in a response. Enriched errors contribute their
// code, context, and remediation hint so agent callers can branch on
// them without parsing message strings.
func Error(err error) Response {
	resp := Response{
		SchemaVersion: "v1",
		Success:       false,
		Error:         err.Error(),
	}
	var rich models.RecoverableError
	if errors.As(err, &rich) {
		resp.ErrorCode = rich.ErrorCode()
		resp.ErrorContext = rich.Context()
		resp.Suggestion = rich.SuggestedAction()
	}
	return resp
}

// Config controls where and how JSON is rendered.
type Config struct {
	Writer io.Writer
	Pretty bool
}

// DefaultConfig writes compact JSON to stdout to minimize token size for
// agent consumption; TASKCOMM_PRETTY_JSON=1 enables indentation for humans.
func DefaultConfig() Config {
	pretty := os.Getenv("TASKCOMM_PRETTY_JSON") == "1" || os.Getenv("TASKCOMM_PRETTY_JSON") == "true"
	return Config{Writer: os.Stdout, Pretty: pretty}
}

// PrintWith prints a value as JSON using the given config.
func PrintWith(cfg Config, v interface{}) error {
	enc := json.NewEncoder(cfg.Writer)
	if cfg.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Print prints a value as JSON to stdout.
func Print(v interface{}) error {
	return PrintWith(DefaultConfig(), v)
}

// PrintSuccess prints a success response.
func PrintSuccess(data interface{}) error {
	return Print(Success(data))
}

// PrintError prints an error response.
func PrintError(err error) error {
	return Print(Error(err))
}

// Keep output package focused: commands should handle human-readable formatting.
