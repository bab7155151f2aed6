package activity

import "errors"

var ErrInvalidFilter = errors.New("invalid filter")
