// Package pagination implements the opaque cursor tokens used by the list
// operations. A token wraps the sort key of the last item on the previous
// page; the store resumes strictly after it, so repeated calls with advancing
// cursors exhaust a result set exactly once.
package pagination

import (
	"encoding/base64"
	"fmt"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Clamp bounds a requested page size to (0, MaxPageSize].
func Clamp(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

// EncodeToken wraps a sort key into an opaque cursor.
func EncodeToken(key string) string {
	if key == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// DecodeToken unwraps a cursor. An empty token means "start from the
// beginning".
func DecodeToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("malformed page token: %w", err)
	}
	return string(raw), nil
}
