package util

import "github.com/google/uuid"

// NewID generates a unique identifier; the tools use it for attachment and
// task ids.
func NewID() string { return uuid.NewString() }
