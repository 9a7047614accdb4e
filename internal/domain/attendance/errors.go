package attendance

import "errors"

var (
	ErrNIMRequired          = errors.New("NIM is required")
	ErrDuplicateAttendance  = errors.New("duplicate attendance detected")
	ErrAlreadyAttendedToday = errors.New("already attended today")
)
