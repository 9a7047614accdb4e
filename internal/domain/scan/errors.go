package scan

import "errors"

var (
	ErrScanNotFound    = errors.New("scan not found")
	ErrAlreadyEnriched = errors.New("scan already enriched")
)
