package compiler

import "errors"

var (
	// ErrUnsupportedDialectFeature marks operators or dimensions with no
	// translation for the active dialect.
	ErrUnsupportedDialectFeature = errors.New("compiler: unsupported dialect feature")
)
