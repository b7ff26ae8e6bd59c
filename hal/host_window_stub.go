//go:build !tinygo && !cgo

package hal

import "errors"

// RunWindow needs the cgo window backend; use RunHeadless instead.
func RunWindow(_ func(h HAL) func() error) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")
}
