package engine

import "errors"

// Sentinel errors covering setup problems, distinct from a denied check:
// a denied check returns (Decision: Deny, nil error); these mean the engine
// cannot evaluate the request at all. Sentinel errors plus Is<X>Err helpers
// are used throughout instead of a type switch.
var (
	// ErrUnknownType is returned when a check names an object or subject
	// type absent from the schema. Checker.Check catches this and
	// downgrades it to a plain denial; Explain and Expand still surface it
	// as an error.
	ErrUnknownType = errors.New("engine: unknown object or subject type")

	// ErrUnknownRelation is returned when a check names a relation absent
	// from the named type. Subject to the same Check-time downgrade as
	// ErrUnknownType.
	ErrUnknownRelation = errors.New("engine: unknown relation")

	// ErrDepthExceeded is returned when evaluation recurses past
	// MaxDepth, the resolution-too-complex error mode.
	ErrDepthExceeded = errors.New("engine: resolution depth exceeded")

	// ErrCycleDetected is returned when a live evaluation revisits a
	// (object, relation) pair already on its own call stack. Schema-level
	// cycles are rejected at load time by schema.DetectCycles; this is the
	// data-level analogue for cyclic parent tuples the store failed to
	// reject (e.g. written directly, bypassing Store.Write).
	ErrCycleDetected = errors.New("engine: cycle detected during evaluation")

	// ErrTenantGone is returned for checks against a tombstoned tenant.
	ErrTenantGone = errors.New("engine: tenant is gone")

	// ErrConsistencyUnmet is returned in strong or bounded consistency
	// mode when the store cannot certify it has caught up to the
	// requested token within the caller's deadline.
	ErrConsistencyUnmet = errors.New("engine: requested consistency not met")

	// ErrNoModel is returned when a check is issued before any schema has
	// been loaded for the tenant.
	ErrNoModel = errors.New("engine: no authorization model loaded")
)

func IsUnknownTypeErr(err error) bool      { return errors.Is(err, ErrUnknownType) }
func IsUnknownRelationErr(err error) bool  { return errors.Is(err, ErrUnknownRelation) }
func IsDepthExceededErr(err error) bool    { return errors.Is(err, ErrDepthExceeded) }
func IsCycleDetectedErr(err error) bool    { return errors.Is(err, ErrCycleDetected) }
func IsTenantGoneErr(err error) bool       { return errors.Is(err, ErrTenantGone) }
func IsConsistencyUnmetErr(err error) bool { return errors.Is(err, ErrConsistencyUnmet) }
func IsNoModelErr(err error) bool          { return errors.Is(err, ErrNoModel) }

// CheckError annotates an evaluation failure with the (object, relation)
// pair that was being resolved when it occurred, so a surfaced failure is
// traceable to the subtree that produced it, not just a bare sentinel.
type CheckError struct {
	Object   string
	Relation string
	Err      error
}

func (e *CheckError) Error() string {
	return "engine: evaluating " + e.Object + "#" + e.Relation + ": " + e.Err.Error()
}

func (e *CheckError) Unwrap() error { return e.Err }

// ValidationError is an OpenFGA-compatible validation failure, kept at the
// same numeric codes OpenFGA itself uses so API responses built on top of
// this engine stay wire-compatible with OpenFGA tooling.
type ValidationError struct {
	Code    int
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) ErrorCode() int { return e.Code }

const (
	ErrorCodeValidation                  = 2000
	ErrorCodeAuthorizationModelNotFound  = 2001
	ErrorCodeResolutionTooComplex        = 2002
)

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
