package bloom

import "errors"

var errShortBuffer = errors.New("bloom: buffer too short to decode filter")
