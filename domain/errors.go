package domain

import "errors"

var (
	// ErrUnknownOrderID means an update or delete referenced an order id
	// that is not in the book index. The book for that symbol is suspect:
	// either a message was missed or the venue sent an anomaly.
	ErrUnknownOrderID = errors.New("order id is not present in the book index")

	// ErrSymbolNotActive means a configured symbol failed the
	// active-instrument check at startup.
	ErrSymbolNotActive = errors.New("symbol is not active on the venue")
)
