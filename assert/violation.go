package assert

// Violation is the panic value raised by a failed check.
type Violation struct {
	Message string
}

func (v Violation) Error() string {
	return "invariant violated: " + v.Message
}
