package database

import "errors"

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("entity not found")

// ErrConflict is returned when a unique constraint would be violated
var ErrConflict = errors.New("entity already exists")
