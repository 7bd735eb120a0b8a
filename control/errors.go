package control

import "fmt"

// UnknownAgentError is returned in strict mode for messages naming an agent that was never
// registered.
type UnknownAgentError struct {
	Name string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("agent %q is not registered", e.Name)
}

// NewUnknownAgentError returns an UnknownAgentError for name.
func NewUnknownAgentError(name string) error {
	return &UnknownAgentError{Name: name}
}
