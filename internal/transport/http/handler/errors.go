package handler

const (
	errInternalServer = "Internal server error"
	errNotFound       = "resource not found"
	errConflict       = "resource modified concurrently, retry"
	errInvalidState   = "resource failed validation"
)
