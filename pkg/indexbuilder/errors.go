package indexbuilder

import "errors"

var errTruncated = errors.New("indexbuilder: truncated range set")
