package types

import "github.com/pkg/errors"

var (
	ErrNoActiveProcess  = errors.New("no active process")
	ErrNoActiveGraph    = errors.New("no active thread graph")
	ErrOutOfRange       = errors.New("node index out of range")
	ErrUnknownCriterion = errors.New("unknown criterion")
)

// IsPrecondition returns true if err is caused by missing process or graph.
func IsPrecondition(err error) bool {
	switch errors.Cause(err) {
	case ErrNoActiveProcess, ErrNoActiveGraph:
		return true
	}
	return false
}
