package executor

import "errors"

var (
	// ErrConnectionFailure covers pool exhaustion and network-level faults;
	// retryable at the round-trip boundary.
	ErrConnectionFailure = errors.New("executor: connection failure")
	// ErrStatementFailure means the backend rejected the statement. The
	// compiler contract makes this a logic error, not a transient fault.
	ErrStatementFailure = errors.New("executor: statement failure")
	// ErrQueryTimeout marks executions cut off by the configured deadline.
	ErrQueryTimeout = errors.New("executor: query timeout")
)
