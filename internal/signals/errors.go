package signals

import "errors"

// ErrStopRequested is the cancellation cause when a kill file is seen.
var ErrStopRequested = errors.New("stop requested")
