package verify

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTimeout is matched by every verification deadline failure.
	ErrTimeout = errors.New("verification timed out")

	// ErrDuplicateMessageID is returned when the receiver hands out a message id
	// that is already tracked by the registry.
	ErrDuplicateMessageID = errors.New("duplicate message id")

	// ErrInvalidParams is returned for run parameters that cannot be executed.
	ErrInvalidParams = errors.New("invalid run parameters")
)

// TimeoutError reports that the log did not catch up within the budget.
// It carries no tasks, only the message ids still outstanding.
type TimeoutError struct {
	Budget      time.Duration
	Offset      int64
	Outstanding []string
}

func (e *TimeoutError) Error() string {
	ids := e.Outstanding
	suffix := ""
	if len(ids) > 5 {
		ids = ids[:5]
		suffix = ", ..."
	}
	return fmt.Sprintf("%v after %s at offset %d: %d task(s) unverified [%s%s]",
		ErrTimeout, e.Budget, e.Offset, len(e.Outstanding), strings.Join(ids, ", "), suffix)
}

// Is makes errors.Is(err, ErrTimeout) work for *TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// IsTimeout reports whether err is a verification timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
