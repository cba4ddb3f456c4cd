package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// Category classifies a pipeline failure.
type Category string

const (
	CategorySchema        Category = "schema"
	CategoryConfiguration Category = "configuration"
	CategoryInvariant     Category = "invariant"
	CategoryIO            Category = "io"
)

// Stage names used in error reports.
const (
	StageConfig    = "config"
	StageLoad      = "load"
	StageClean     = "clean"
	StageAggregate = "aggregate"
	StageIncrement = "increment"
	StageArtifacts = "artifacts"
	StageMerge     = "merge"
	StageEncode    = "encode"
	StageCluster   = "cluster"
	StageEvaluate  = "evaluate"
	StageOutput    = "output"
)

// StageError wraps an errbuilder error with the stage that failed and the
// invariant that was violated. A failed stage aborts the run.
type StageError struct {
	*errbuilder.ErrBuilder
	Category  Category
	Stage     string
	Invariant string
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s error: %s", e.Stage, e.Category, e.ErrBuilder.Msg)
	if e.Invariant != "" {
		fmt.Fprintf(&b, " (invariant: %s)", e.Invariant)
	}
	if cause := e.Unwrap(); cause != nil {
		fmt.Fprintf(&b, ": %v", cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

func newStageError(builder *errbuilder.ErrBuilder, category Category, stage, invariant, msg string, cause error) *StageError {
	builder = builder.WithMsg(msg)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return &StageError{
		ErrBuilder: builder,
		Category:   category,
		Stage:      stage,
		Invariant:  invariant,
	}
}

// NewSchemaError reports input that violates the data contract, such as a
// missing required column or a non-numeric value reaching the cluster engine.
func NewSchemaError(stage, invariant, msg string, cause error) *StageError {
	return newStageError(errbuilder.New().WithCode(errbuilder.CodeInvalidArgument), CategorySchema, stage, invariant, msg, cause)
}

// NewConfigurationError reports an invalid configuration or feature schema.
func NewConfigurationError(stage, msg string, cause error) *StageError {
	return newStageError(errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition), CategoryConfiguration, stage, "", msg, cause)
}

// NewInvariantError reports an internal consistency failure between stages.
func NewInvariantError(stage, invariant, msg string) *StageError {
	return newStageError(errbuilder.New().WithCode(errbuilder.CodeInternal), CategoryInvariant, stage, invariant, msg, nil)
}

// NewIOError reports a failure reading or writing files, artifacts or sinks.
func NewIOError(stage, msg string, cause error) *StageError {
	return newStageError(errbuilder.New().WithCode(errbuilder.CodeUnavailable), CategoryIO, stage, "", msg, cause)
}

// IsCategory reports whether err, or any error it wraps, is a StageError of the given category.
func IsCategory(err error, category Category) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Category == category
	}
	return false
}

// StageOf returns the stage recorded on err, or "" when err is not a StageError.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
