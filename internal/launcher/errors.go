package launcher

import "errors"

var (
	// ErrInvalidTimeout rejects non-positive stability timeouts before
	// anything is locked or launched.
	ErrInvalidTimeout = errors.New("timeout must be greater than zero")

	// ErrAlreadyRunning means another chromedoctor invocation holds the
	// single-instance lock.
	ErrAlreadyRunning = errors.New("another instance is already running")

	// ErrChromeNotFound means no Chrome executable could be located.
	ErrChromeNotFound = errors.New("chrome executable not found")

	// ErrChromeExited means the browser exited with a nonzero code
	// before the stability timeout elapsed.
	ErrChromeExited = errors.New("chrome exited with an error before the stability timeout")
)
