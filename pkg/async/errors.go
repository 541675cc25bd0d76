package async

import "errors"

// ErrTimeout is returned by AwaitWithTimeout when the future is not complete in time.
var ErrTimeout = errors.New("async: timeout waiting for result")
