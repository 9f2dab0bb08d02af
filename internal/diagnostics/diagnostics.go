// Package diagnostics classifies the soft-error kinds spec.md §7 names
// (Discovery-soft, Load-soft, Registration-soft, Connect-soft, IO-soft,
// Persistence-fatal) as typed errors built on containerd/errdefs, and
// aggregates the several failures a single batch operation (scanAndLoad)
// can produce.
package diagnostics

import (
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/hashicorp/go-multierror"
)

// NotFound classifies an unknown provider/receiver/port reference.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errdefs.ErrNotFound)
}

// AlreadyExists classifies a duplicate port key registration.
func AlreadyExists(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errdefs.ErrAlreadyExists)
}

// FailedPrecondition classifies an operation invoked out of order, e.g.
// CreatePort before BeginAddon.
func FailedPrecondition(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errdefs.ErrFailedPrecondition)
}

// InvalidArgument classifies a rejected validator/connect decision, a
// mixed access-policy connect attempt, or a malformed graph file.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errdefs.ErrInvalidArgument)
}

// IsNotFound, IsAlreadyExists, IsFailedPrecondition and IsInvalidArgument
// re-export errdefs' classification so callers never need to import
// errdefs directly.
var (
	IsNotFound          = errdefs.IsNotFound
	IsAlreadyExists     = errdefs.IsAlreadyExists
	IsFailedPrecondition = errdefs.IsFailedPrecondition
	IsInvalidArgument   = errdefs.IsInvalidArgument
)

// Aggregator collects the soft failures from one batch operation
// (scanAndLoad over N candidates) without disturbing the boolean-return contract spec.md requires of
// those operations — callers still get a bool; this is the optional
// detail behind it.
type Aggregator struct {
	err *multierror.Error
}

// Add records one failure. A nil err is a no-op.
func (a *Aggregator) Add(err error) {
	if err == nil {
		return
	}
	a.err = multierror.Append(a.err, err)
}

// Err returns the aggregated error, or nil if nothing was added.
func (a *Aggregator) Err() error {
	if a.err == nil {
		return nil
	}
	return a.err
}

// Len reports how many failures have been recorded.
func (a *Aggregator) Len() int {
	if a.err == nil {
		return 0
	}
	return len(a.err.Errors)
}
