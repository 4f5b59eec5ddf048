package boltz

type Currency string

const (
	CurrencyBtc    Currency = "BTC"
	CurrencyLiquid Currency = "L-BTC"
)
