package hosting

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidReference is matched by every *InvalidReferenceError.
	ErrInvalidReference = errors.New("invalid account reference")

	// ErrUpstream is matched by every *UpstreamError.
	ErrUpstream = errors.New("upstream error")

	// ErrNoAccessibleBranch is matched by every *NoAccessibleBranchError.
	ErrNoAccessibleBranch = errors.New("no accessible branch")

	// ErrContentUnavailable is matched by every *ContentUnavailableError.
	ErrContentUnavailable = errors.New("content unavailable")
)

// InvalidReferenceError reports an account reference that could not be parsed.
type InvalidReferenceError struct {
	Ref    string
	Reason string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid account reference %q: %s", e.Ref, e.Reason)
}

func (e *InvalidReferenceError) Is(target error) bool { return target == ErrInvalidReference }

// UpstreamError reports a failed hosting API call. Status is the HTTP status
// code, or 0 when no response arrived (timeout, network failure).
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: upstream request failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: upstream returned %d %s: %v", e.Op, e.Status, http.StatusText(e.Status), e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// NoAccessibleBranchError reports that none of the tried branches yielded a
// non-empty tree.
type NoAccessibleBranchError struct {
	Repo  string
	Tried []string
}

func (e *NoAccessibleBranchError) Error() string {
	return fmt.Sprintf("%s: no accessible branch (tried %s)", e.Repo, strings.Join(e.Tried, ", "))
}

func (e *NoAccessibleBranchError) Is(target error) bool { return target == ErrNoAccessibleBranch }

// ContentUnavailableError reports a file whose content could not be
// retrieved or decoded.
type ContentUnavailableError struct {
	Path string
	Err  error
}

func (e *ContentUnavailableError) Error() string {
	return fmt.Sprintf("content unavailable for %s: %v", e.Path, e.Err)
}

func (e *ContentUnavailableError) Unwrap() error { return e.Err }

func (e *ContentUnavailableError) Is(target error) bool { return target == ErrContentUnavailable }

// StatusOf returns the HTTP status carried by an *UpstreamError in err's
// chain, or 0.
func StatusOf(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
