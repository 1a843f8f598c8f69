// Package capability declares the external services the meal planner calls
// out to: a recipe verifier, an ambient-context source (weather) and an
// illustrator for cooking steps.
//
// Every call runs under a timeout. Transport failures come back as *Failure,
// which matches ErrUnavailable with errors.Is, so callers can degrade instead
// of aborting the turn.
package capability

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a capability.
type Kind string

const (
	KindVerify     Kind = "verify_recipe"
	KindAmbient    Kind = "lookup_ambient"
	KindIllustrate Kind = "illustrate_step"
)

// ErrUnavailable marks a capability that could not be reached or answered
// with an error.
var ErrUnavailable = errors.New("external capability unavailable")

// Failure is the typed result of a failed capability call.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s unavailable: %v", f.Kind, f.Err)
}

// Unwrap exposes both ErrUnavailable and the underlying cause.
func (f *Failure) Unwrap() []error {
	return []error{ErrUnavailable, f.Err}
}

// Unavailable wraps err as a Failure for kind. Errors that already are a
// Failure are returned unchanged.
func Unavailable(kind Kind, err error) error {
	var f *Failure
	if errors.As(err, &f) {
		return err
	}
	return &Failure{Kind: kind, Err: err}
}

// Candidate identifies the recipe to verify.
type Candidate struct {
	Name        string `json:"name"`
	SourceURL   string `json:"source_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Verification is the verifier's answer. When Verified is false, Reason
// explains why the candidate could not be confirmed.
type Verification struct {
	Verified     bool     `json:"verified"`
	Name         string   `json:"name,omitempty"`
	SourceURL    string   `json:"source_url,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
	PrepTime     string   `json:"prep_time,omitempty"`
	CookTime     string   `json:"cook_time,omitempty"`
	Servings     string   `json:"servings,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// Location is where the user is cooking.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country,omitempty"`
}

func (l Location) String() string {
	if l.Country == "" {
		return l.City
	}
	return l.City + ", " + l.Country
}

// Ambient status values.
const (
	AmbientSuccess = "success"
	AmbientFailed  = "failed"
)

// Ambient is current context for the user's location.
type Ambient struct {
	Status       string            `json:"status"`
	Location     string            `json:"location"`
	Conditions   map[string]string `json:"conditions,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

// Illustration references a generated image artifact.
type Illustration struct {
	ArtifactID string `json:"artifact_id"`
	Version    int    `json:"version"`
	MimeType   string `json:"mime_type,omitempty"`
}

// Verifier confirms a candidate recipe against an external source.
type Verifier interface {
	Verify(ctx context.Context, candidate Candidate) (Verification, error)
}

// AmbientSource looks up ambient context such as weather.
type AmbientSource interface {
	Lookup(ctx context.Context, location Location) (Ambient, error)
}

// Illustrator renders an image for a prompt.
type Illustrator interface {
	Illustrate(ctx context.Context, prompt string) (Illustration, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, candidate Candidate) (Verification, error)

func (f VerifierFunc) Verify(ctx context.Context, candidate Candidate) (Verification, error) {
	return f(ctx, candidate)
}

// AmbientFunc adapts a function to AmbientSource.
type AmbientFunc func(ctx context.Context, location Location) (Ambient, error)

func (f AmbientFunc) Lookup(ctx context.Context, location Location) (Ambient, error) {
	return f(ctx, location)
}

// IllustratorFunc adapts a function to Illustrator.
type IllustratorFunc func(ctx context.Context, prompt string) (Illustration, error)

func (f IllustratorFunc) Illustrate(ctx context.Context, prompt string) (Illustration, error) {
	return f(ctx, prompt)
}
