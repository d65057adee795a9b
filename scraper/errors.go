package scraper

import (
	"errors"
	"fmt"
)

// ErrorKind says how far a failure is allowed to unwind.
type ErrorKind string

const (
	// KindField is a single attribute that could not be resolved.
	KindField ErrorKind = "field"
	// KindAsset is one image that could not be fetched or written.
	KindAsset ErrorKind = "asset"
	// KindListing is a whole detail visit or listing card that failed.
	KindListing ErrorKind = "listing"
	// KindPage is a discovery page that never loaded or held no listings.
	KindPage ErrorKind = "page"
	// KindRun is invalid run configuration, rejected before any navigation.
	KindRun ErrorKind = "run"
)

var (
	ErrInvalidPageRange = errors.New("invalid page range")
	ErrUnknownSite      = errors.New("unknown site")
	ErrInvalidStrategy  = errors.New("invalid extraction strategy")
	ErrInvalidPhase     = errors.New("invalid phase")
	ErrMissingArtifact  = errors.New("discovery artifact not found")
	ErrEmptyPage        = errors.New("no listings on page")
	ErrEmptyCard        = errors.New("listing card has neither title nor url")
)

// Error is a failure tagged with its scope in the failure taxonomy.
type Error struct {
	Kind ErrorKind
	Op   string
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Kind, e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err, or anything it wraps, is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

// RunError builds a run-level configuration error around sentinel.
func RunError(sentinel error, format string, args ...any) error {
	return &Error{Kind: KindRun, Op: "validate", Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}

// UserMessage renders err for the command line.
func UserMessage(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Kind == KindRun {
		return fmt.Sprintf("configuration rejected: %v", se.Err)
	}
	return err.Error()
}
