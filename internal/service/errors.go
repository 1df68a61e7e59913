package service

import "errors"

var (
	ErrRunNotFound = errors.New("run not found")
	ErrInvalidPath = errors.New("invalid metric path")
)
