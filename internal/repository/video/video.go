package video

import "errors"

var ErrNotFound = errors.New("not found")
