package uvccapture

import (
	"context"
	"errors"

	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/retry"
)

// RetryConfig controls InitWithRetry backoff.
type RetryConfig = retry.Config

// DefaultRetryConfig returns 5 retries starting at 1s, capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return retry.DefaultConfig()
}

// InitWithRetry calls Init with exponential backoff. Devices that are
// briefly busy (another process releasing /dev/videoN, USB re-enumeration)
// usually succeed on a later attempt.
//
// State, parameter and unsupported-format errors are not retried.
func (c *Camera) InitWithRetry(ctx context.Context, cfg RetryConfig) error {
	return retry.Run(ctx, "uvc-capture: init", func(ctx context.Context) error {
		err := c.Init(ctx)
		if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrInvalidParam) || errors.Is(err, ErrNotSupported) {
			return retry.Permanent(err)
		}
		return err
	}, cfg, nil)
}
