package testutil

import "errors"

// Common test errors
var (
	ErrShardDown   = errors.New("shard unreachable")
	ErrTestFailure = errors.New("test failure")
)
