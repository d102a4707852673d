package store

import "errors"

var (
	ErrNotFound = errors.New("decision not found")
	ErrStorage  = errors.New("state storage failure")
)
