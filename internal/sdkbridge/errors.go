package sdkbridge

import "moff.io/wallet-bridge/pkg/errors"

var (
	ErrEnvironmentUnsupported = errors.New("wallet host bridge unavailable")
	ErrNotInitialized         = errors.New("not initialized")
	ErrAlreadyInitialized     = errors.New("sdk already initialized")
	ErrEmptyCallBatch         = errors.New("no transaction calls provided")
	ErrBridgeCallbackFailure  = errors.New("host reported failure")
)
