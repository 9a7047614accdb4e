package device

import "errors"

var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrConcurrentUpdate = errors.New("device was modified concurrently")
)
