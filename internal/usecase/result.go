// Package usecase composes port calls into business workflows.
//
// Every workflow returns exactly one Result. Business outcomes such as a
// rejected form or a duplicate name are data on the Result, never Go errors,
// and a panic inside a workflow is recovered into KindUnknownError. Creation
// workflows register what they create with the scenario's tracker before
// returning so teardown can remove it.
package usecase

import (
	"errors"
	"fmt"
	"strings"

	"mke2e/internal/domain"
	"mke2e/internal/ports"
	"mke2e/internal/tracker"
	"mke2e/pkg/logging"
)

// Kind tags the variant of a Result.
type Kind string

const (
	KindSuccess         Kind = "success"
	KindValidationError Kind = "validation_error"
	KindDomainError     Kind = "domain_error"
	KindConflictError   Kind = "conflict_error"
	KindUnknownError    Kind = "unknown_error"
)

// Kinds lists every Result variant.
var Kinds = []Kind{KindSuccess, KindValidationError, KindDomainError, KindConflictError, KindUnknownError}

// Result is the outcome of one workflow. ID is only set on success and may
// be empty when the application's ID could not be observed. Message and
// Details are only set on failures; Details is only used by
// KindValidationError.
type Result struct {
	Kind    Kind     `json:"kind"`
	ID      string   `json:"id,omitempty"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

// Success builds a success result.
func Success(id string) Result {
	return Result{Kind: KindSuccess, ID: id}
}

// ValidationError builds a validation result.
func ValidationError(message string, details ...string) Result {
	return Result{Kind: KindValidationError, Message: message, Details: details}
}

// DomainError builds a business-rule result.
func DomainError(message string) Result {
	return Result{Kind: KindDomainError, Message: message}
}

// ConflictError builds a uniqueness-violation result.
func ConflictError(message string) Result {
	return Result{Kind: KindConflictError, Message: message}
}

// UnknownError builds a result for any failure that could not be classified.
func UnknownError(message string) Result {
	return Result{Kind: KindUnknownError, Message: message}
}

// IsSuccess reports whether the workflow succeeded.
func (r Result) IsSuccess() bool {
	return r.Kind == KindSuccess
}

// Err returns nil for success and an error describing the failure otherwise.
func (r Result) Err() error {
	if r.IsSuccess() {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Kind, r.Message)
}

func (r Result) String() string {
	switch {
	case r.IsSuccess() && r.ID != "":
		return fmt.Sprintf("success (id=%s)", r.ID)
	case r.IsSuccess():
		return "success"
	case len(r.Details) > 0:
		return fmt.Sprintf("%s: %s [%s]", r.Kind, r.Message, strings.Join(r.Details, "; "))
	default:
		return fmt.Sprintf("%s: %s", r.Kind, r.Message)
	}
}

// Deps are the collaborators every workflow shares.
type Deps struct {
	Tracker *tracker.Tracker
	Logger  *logging.Logger
}

func (d Deps) logger(name string) *logging.Logger {
	return d.Logger.With(name)
}

// guard converts a panic in a workflow into an unknown error result.
func guard(res *Result, logger *logging.Logger) {
	if r := recover(); r != nil {
		logger.Error(fmt.Errorf("%v", r), "Recovered panic in workflow")
		*res = UnknownError(fmt.Sprintf("panic: %v", r))
	}
}

// track registers a created entity. A tracking failure only happens for
// entries with no name and no ID, which callers never produce, so it is
// logged rather than returned.
func track(d Deps, logger *logging.Logger, kind tracker.Kind, id, name string) {
	if d.Tracker == nil {
		return
	}
	if err := d.Tracker.Track(kind, id, name); err != nil {
		logger.Error(err, "Failed to track %s %q", kind, name)
	}
}

// fromRuleError maps a local rule violation onto a domain result.
func fromRuleError(err error) Result {
	var ruleErr *domain.RuleError
	if errors.As(err, &ruleErr) {
		return DomainError(ruleErr.Message)
	}
	return UnknownError(err.Error())
}

// fromAPIError classifies an error returned by an API port.
func fromAPIError(err error) Result {
	switch {
	case errors.Is(err, ports.ErrConflict):
		return ConflictError(err.Error())
	case errors.Is(err, ports.ErrRejected):
		return ValidationError(err.Error())
	case errors.Is(err, ports.ErrNotFound):
		return DomainError(err.Error())
	default:
		return UnknownError(err.Error())
	}
}
