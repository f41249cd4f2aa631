package domain

// Sink receives normalized events. Implementations must not retain the
// pointers past the call; events are value objects owned by the caller.
// Delivery order matches the stream processing order.
type Sink interface {
	OnTrade(t *Trade)
	OnBookUpdate(u *BookUpdate)
	OnQuote(q *Quote)
	OnFunding(f *Funding)
	OnOpenInterest(oi *OpenInterest)
}
