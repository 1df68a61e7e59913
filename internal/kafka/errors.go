package kafka

import "errors"

// ErrUndecodable marks a message whose payload is not a sample.
var ErrUndecodable = errors.New("undecodable sample message")
