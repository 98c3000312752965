package pipeline

import "errors"

// ErrConfiguration marks fatal setup problems (missing or empty word
// source). It is the only error class that aborts a run; everything else
// is attributed to individual words and the run keeps going.
var ErrConfiguration = errors.New("configuration error")
