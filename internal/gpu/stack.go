package gpu

import "errors"

// Stack collects release functions while resources are acquired and runs
// them in reverse order. It lets setup code roll back cleanly when a later
// step fails.
type Stack struct {
	fns []func() error
}

// Push registers a release function.
func (s *Stack) Push(fn func() error) {
	s.fns = append(s.fns, fn)
}

// Len returns the number of pending release functions.
func (s *Stack) Len() int {
	return len(s.fns)
}

// Release runs every registered function, last first. Individual failures
// do not stop the unwinding; they are joined into the returned error.
func (s *Stack) Release() error {
	var errs []error
	for i := len(s.fns) - 1; i >= 0; i-- {
		if err := s.fns[i](); err != nil {
			errs = append(errs, err)
		}
		s.fns[i] = nil
	}
	s.fns = s.fns[:0]
	return errors.Join(errs...)
}
