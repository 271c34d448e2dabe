package explorer

import "errors"

var (
	ErrAbiUnavailable   = errors.New("contract ABI unavailable")
	ErrSelectorNotFound = errors.New("selector not found in ABI")
	ErrUnavailable      = errors.New("explorer unavailable")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrUnknownNetwork   = errors.New("no explorer configured for network")
)
