package darknet

import "errors"

var (
	ErrTruncatedHeader  = errors.New("truncated darknet header")
	ErrTruncatedPayload = errors.New("truncated darknet payload")
	ErrSizeMismatch     = errors.New("darknet weight count mismatch")
	ErrBadDescriptor    = errors.New("invalid layer descriptor")
)
