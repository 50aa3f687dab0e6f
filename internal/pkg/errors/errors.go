// Package errors provides error types and leveled logging for tag2changelog.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode represents the category of an error.
type ErrorCode int

const (
	// Usage errors
	ErrInvalidArguments ErrorCode = iota + 100
	ErrInvalidFilter
	ErrInvalidConfig

	// Environment errors
	ErrMissingTool ErrorCode = iota + 200
	ErrNoDistribution
	ErrDirectory
	ErrLockHeld
	ErrGitCommandFailed
	ErrTimeout

	// Data errors
	ErrNoTags ErrorCode = iota + 300
	ErrNoRootCommit
	ErrBadPattern
	ErrBadVersion
	ErrCompareFailed

	// Delegate errors
	ErrEmitterFailed ErrorCode = iota + 400
)

// HasCode reports whether the first AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

// Category returns the error family the code belongs to.
func (c ErrorCode) Category() string {
	switch {
	case c >= 100 && c < 200:
		return "usage"
	case c >= 200 && c < 300:
		return "environment"
	case c >= 300 && c < 400:
		return "data"
	case c >= 400:
		return "delegate"
	default:
		return "unknown"
	}
}

// ExitCode returns the process exit status for an error code.
// Every fatal condition exits 1.
func (c ErrorCode) ExitCode() int {
	return 1
}

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidArguments:
		return "InvalidArguments"
	case ErrInvalidFilter:
		return "InvalidFilter"
	case ErrInvalidConfig:
		return "InvalidConfig"
	case ErrMissingTool:
		return "MissingTool"
	case ErrNoDistribution:
		return "NoDistribution"
	case ErrDirectory:
		return "Directory"
	case ErrLockHeld:
		return "LockHeld"
	case ErrGitCommandFailed:
		return "GitCommandFailed"
	case ErrTimeout:
		return "Timeout"
	case ErrNoTags:
		return "NoTags"
	case ErrNoRootCommit:
		return "NoRootCommit"
	case ErrBadPattern:
		return "BadPattern"
	case ErrBadVersion:
		return "BadVersion"
	case ErrCompareFailed:
		return "CompareFailed"
	case ErrEmitterFailed:
		return "EmitterFailed"
	default:
		return "Unknown"
	}
}

// AppError represents an application error with context.
type AppError struct {
	Code       ErrorCode
	Message    string
	Cause      error
	Context    map[string]interface{}
	Suggestion string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion to the error.
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with context.
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapWithContext wraps an error with a context message.
func WrapWithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts an AppError from an error chain.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// GetExitCode returns the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code.ExitCode()
	}
	return 1
}

// Common error constructors with suggestions

// NewUsageError creates an error for invalid command-line usage.
func NewUsageError(message string) *AppError {
	return &AppError{
		Code:       ErrInvalidArguments,
		Message:    message,
		Suggestion: "Run 'tag2changelog -h' for usage",
	}
}

// NewMissingToolError creates an error for a required executable that is not on PATH.
func NewMissingToolError(tool string, err error) *AppError {
	return &AppError{
		Code:       ErrMissingTool,
		Message:    fmt.Sprintf("required tool %q not found", tool),
		Cause:      err,
		Suggestion: fmt.Sprintf("Install %s or make sure it is on your PATH", tool),
	}
}

// NewNoDistributionError creates an error for an unresolvable release codename.
func NewNoDistributionError(err error) *AppError {
	return &AppError{
		Code:       ErrNoDistribution,
		Message:    "could not determine the distribution codename",
		Cause:      err,
		Suggestion: "Pass the codename explicitly with -d <codename>",
	}
}

// NewGitError creates an error for git command failures.
func NewGitError(err error, output string) *AppError {
	appErr := &AppError{
		Code:    ErrGitCommandFailed,
		Message: "git command failed",
		Cause:   err,
	}
	if output != "" {
		appErr.Context = map[string]interface{}{
			"output": output,
		}
	}
	return appErr
}

// NewTimeoutError creates an error for an external command that ran out of time.
func NewTimeoutError(err error) *AppError {
	return &AppError{
		Code:       ErrTimeout,
		Message:    "command timed out",
		Cause:      err,
		Suggestion: "Raise git.timeout_seconds or emitter.timeout_seconds in the configuration",
	}
}

// NewNoTagsError creates an error for a branch without reachable tags.
func NewNoTagsError(filter string) *AppError {
	appErr := &AppError{
		Code:       ErrNoTags,
		Message:    "no tags found on the current branch",
		Suggestion: "Tag a release first, e.g. 'git tag v0.1'",
	}
	if filter != "" {
		appErr.Message = fmt.Sprintf("no tags on the current branch match filter %q", filter)
		appErr.Suggestion = "Check the -F filter expression"
	}
	return appErr
}

// NewBadPatternError creates an error for a malformed substitution pattern.
func NewBadPatternError(pattern string, err error) *AppError {
	return &AppError{
		Code:       ErrBadPattern,
		Message:    fmt.Sprintf("invalid substitution pattern %q", pattern),
		Cause:      err,
		Suggestion: "Patterns use sed syntax, e.g. 's/^v//' or 's/_/./g'",
	}
}

// NewBadVersionError creates an error for a tag that did not derive a valid version.
func NewBadVersionError(tag, version string) *AppError {
	return &AppError{
		Code:       ErrBadVersion,
		Message:    fmt.Sprintf("unresolved version %q derived from tag %q", version, tag),
		Suggestion: "Add substitution patterns that turn the tag into a Debian version, or exclude it with -F",
		Context: map[string]interface{}{
			"tag":     tag,
			"version": version,
		},
	}
}

// NewEmitterError creates an error for a failed changelog-writer invocation.
func NewEmitterError(version, from, to string, err error, output string) *AppError {
	appErr := &AppError{
		Code:       ErrEmitterFailed,
		Message:    fmt.Sprintf("failed to write changelog entry %s (%s..%s)", version, from, to),
		Cause:      err,
		Suggestion: "Entries written before the failure were kept; fix the changelog by hand before re-running",
	}
	if output != "" {
		appErr.Context = map[string]interface{}{
			"output": output,
		}
	}
	return appErr
}

// FormatError formats an error for user display.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	appErr := GetAppError(err)
	if appErr != nil {
		sb.WriteString("Error: ")
		sb.WriteString(appErr.Message)

		if appErr.Cause != nil {
			sb.WriteString("\n  Cause: ")
			sb.WriteString(appErr.Cause.Error())
		}

		if appErr.Suggestion != "" {
			sb.WriteString("\n  Suggestion: ")
			sb.WriteString(appErr.Suggestion)
		}
	} else {
		sb.WriteString("Error: ")
		sb.WriteString(err.Error())
	}

	return sb.String()
}

// FormatErrorVerbose formats an error with full details for verbose mode.
func FormatErrorVerbose(err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	appErr := GetAppError(err)
	if appErr != nil {
		sb.WriteString(fmt.Sprintf("Error [%s/%s]: %s\n", appErr.Code.Category(), appErr.Code.String(), appErr.Message))

		if appErr.Cause != nil {
			sb.WriteString(fmt.Sprintf("  Cause: %v\n", appErr.Cause))
			sb.WriteString("  Error chain:\n")
			printErrorChain(&sb, appErr.Cause, 2)
		}

		if len(appErr.Context) > 0 {
			sb.WriteString("  Context:\n")
			keys := make([]string, 0, len(appErr.Context))
			for k := range appErr.Context {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				sb.WriteString(fmt.Sprintf("    %s: %v\n", k, appErr.Context[k]))
			}
		}

		if appErr.Suggestion != "" {
			sb.WriteString(fmt.Sprintf("  Suggestion: %s\n", appErr.Suggestion))
		}
	} else {
		sb.WriteString(fmt.Sprintf("Error: %v\n", err))
		sb.WriteString("  Error chain:\n")
		printErrorChain(&sb, err, 2)
	}

	return sb.String()
}

// printErrorChain prints the error chain with indentation.
func printErrorChain(sb *strings.Builder, err error, indent int) {
	if err == nil {
		return
	}

	prefix := strings.Repeat("  ", indent)
	sb.WriteString(fmt.Sprintf("%s- %T: %v\n", prefix, err, err))

	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		printErrorChain(sb, unwrapped, indent+1)
	}
}
