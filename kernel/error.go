package kernel

// Error describes a kernel error. Errors are declared as package-level
// pointers to Error so that they can be returned and compared by identity
// before the Go allocator is available (errors.New would allocate).
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// String returns the error message prefixed by the name of the module that
// reported it.
func (e *Error) String() string {
	return "[" + e.Module + "] " + e.Message
}
