package uvccapture

import (
	"errors"
	"fmt"

	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/queue"
)

// Converter errors
var (
	// ErrInvalidParam reports a source frame whose format, geometry or size
	// does not fit the requested conversion
	ErrInvalidParam = errors.New("invalid parameter")
	// ErrNoMem reports a destination buffer that could not be sized
	ErrNoMem = errors.New("insufficient memory")
	// ErrNotSupported reports a source format the dispatcher cannot convert
	ErrNotSupported = errors.New("not supported")
)

// Session errors
var (
	// ErrInvalidState reports an operation called in the wrong lifecycle state
	ErrInvalidState = errors.New("invalid state")
	// ErrStreaming reports Deinit called before StopStreaming
	ErrStreaming = errors.New("camera is streaming")
	// ErrClosed is returned by WaitFrame once the session is deinitialized
	ErrClosed = queue.ErrClosed
)

// wrapErr prefixes err with the module name and the failing operation.
func wrapErr(op string, err error) error {
	return fmt.Errorf("uvc-capture: %s: %w", op, err)
}
