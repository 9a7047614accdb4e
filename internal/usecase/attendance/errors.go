package attendance

import (
	"fmt"
	"math"
	"time"

	domainAttendance "stokmanager/internal/domain/attendance"
)

// DuplicateError reports a check-in repeated inside the duplicate window.
type DuplicateError struct {
	NIM   string
	Since time.Duration
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("NIM %s sudah tercatat %d detik yang lalu", e.NIM, int(math.Round(e.Since.Seconds())))
}

func (e *DuplicateError) Unwrap() error {
	return domainAttendance.ErrDuplicateAttendance
}
