package ocs

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by dispatch verbs when the router
// connection is down.
var ErrNotConnected = errors.New("router connection is down")

// DispatchError reports a failed run/abort/start/stop call. It is
// user-visible and never fatal: the operation's stored session is
// left untouched and other operations are unaffected.
type DispatchError struct {
	Verb string // "run", "abort", "start", "stop"
	Addr Address
	Op   string
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s %s.%s: %v", e.Verb, e.Addr, e.Op, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Dispatch wraps err as a DispatchError. Nil passes through, and an
// error that is already a DispatchError is not wrapped again.
func Dispatch(verb string, addr Address, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DispatchError
	if errors.As(err, &de) {
		return err
	}
	return &DispatchError{Verb: verb, Addr: addr, Op: op, Err: err}
}
