package domain

type Side string
type TradeSide string

const (
	Side_Bid Side = "Bid"
	Side_Ask Side = "Ask"

	TradeSide_Buy  TradeSide = "Buy"
	TradeSide_Sell TradeSide = "Sell"
)

// SideFromToken maps the venue side token of a book row to a book side.
// Resting buy orders form the bid side, sells the ask side.
func SideFromToken(token string) Side {
	if token == "Buy" {
		return Side_Bid
	}
	return Side_Ask
}

func TradeSideFromToken(token string) TradeSide {
	if token == "Buy" {
		return TradeSide_Buy
	}
	return TradeSide_Sell
}
