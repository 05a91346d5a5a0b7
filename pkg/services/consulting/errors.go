package consulting

import "errors"

var errEmptyNotes = errors.New("patient notes are required")
