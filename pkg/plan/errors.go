package plan

import (
	"errors"
	"strings"

	"github.com/chalin/build/internal/config"
	"github.com/chalin/build/internal/order"
	"github.com/chalin/build/internal/planner"
	"github.com/chalin/build/internal/workspace"
)

// Errors is the aggregate failure surface toward the consumer: every
// configuration error found during planning, with no partial plan attached.
type Errors []error

func (e Errors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

func (e Errors) Unwrap() []error {
	return e
}

// intoErrors flattens whatever the pipeline produced (a single error or an
// errors.Join aggregate) into an Errors value.
func intoErrors(err error) Errors {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return Errors(joined.Unwrap())
	}
	return Errors{err}
}

// errorType labels an error for the failure metric.
func errorType(err error) string {
	var (
		parseErr     *config.ParseError
		duplicateErr *config.DuplicateKeyError
		autoApplyErr *config.UnknownAutoApplyError
		missingErr   *workspace.MissingPackageError
		cycleErr     *order.CycleError
		unknownErr   *order.UnknownBuilderError
		resolveErr   *planner.ResolveError
	)
	switch {
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &duplicateErr):
		return "duplicate_key"
	case errors.As(err, &autoApplyErr):
		return "unknown_auto_apply"
	case errors.As(err, &missingErr):
		return "missing_package"
	case errors.As(err, &cycleErr):
		return "builder_cycle"
	case errors.As(err, &unknownErr):
		return "unknown_builder"
	case errors.As(err, &resolveErr):
		return "resolve"
	default:
		return "internal"
	}
}
