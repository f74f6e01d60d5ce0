package session

import "fmt"

// Kind is the class of a backend error as far as the store is concerned.
type Kind int

const (
	// KindNone covers every error the store does not interpret.
	// Such errors propagate unchanged.
	KindNone Kind = iota

	// KindUniqueViolation is a unique-index violation; Conflict.Index names
	// the index when the backend reports it.
	KindUniqueViolation

	// KindPrecondition is the backend-raised expected-version failure.
	KindPrecondition

	// KindTransient is a deadlock, busy or serialization failure that is
	// safe to retry from scratch.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUniqueViolation:
		return "unique_violation"
	case KindPrecondition:
		return "precondition"
	case KindTransient:
		return "transient"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Conflict is the classification of one backend error.
type Conflict struct {
	Kind  Kind
	Index string
}

// IsUniqueViolationOn reports a unique violation on the named index.
func (c Conflict) IsUniqueViolationOn(index string) bool {
	return c.Kind == KindUniqueViolation && c.Index == index
}

// Classifier maps backend errors to a Conflict.
type Classifier interface {
	Classify(err error) Conflict
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(err error) Conflict

// Classify calls f.
func (f ClassifierFunc) Classify(err error) Conflict {
	return f(err)
}
