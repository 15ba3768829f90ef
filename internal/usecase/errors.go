package usecase

import "fmt"

// EntityError marks a failure scoped to a single contract during a
// batch pass. It is caught and logged at the point of iteration and
// never aborts the surrounding pass.
type EntityError struct {
	ContractNumber string
	Err            error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("contract %s: %v", e.ContractNumber, e.Err)
}

func (e *EntityError) Unwrap() error { return e.Err }
