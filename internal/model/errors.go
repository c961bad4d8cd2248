package model

import "errors"

// Sentinel errors shared by every store implementation and the service layer.
// Handlers map these to HTTP statuses.

// ErrNotFound is returned when a referenced chain, occurrence, photo,
// community or group does not exist.
var ErrNotFound = errors.New("not found")

// ErrPermissionDenied is returned when the actor lacks the rights a mutating
// operation requires.
var ErrPermissionDenied = errors.New("permission denied")

// ErrConflict is returned when a concurrent reschedule or transfer is detected
// on the same chain. Callers should retry the whole operation.
var ErrConflict = errors.New("conflicting concurrent update")

// ErrDependencyUnavailable is returned when an external collaborator call
// failed transiently. The enclosing operation is aborted and safe to retry.
var ErrDependencyUnavailable = errors.New("dependency unavailable")
