package editor

import "errors"

var (
	ErrIndexOutOfRange = errors.New("point index out of range")
	ErrSaveInProgress  = errors.New("a save for this route is already in progress")
	ErrSessionNotFound = errors.New("edit session not found")
	ErrRouteBusy       = errors.New("route is open in an edit session or being updated")
)
