package coingecko

// marketRow is one entry of the /coins/markets listing.
type marketRow struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// tickersResponse wraps the /coins/{id}/tickers payload.
type tickersResponse struct {
	Name    string      `json:"name"`
	Tickers []tickerRow `json:"tickers"`
}

// tickerRow is one exchange listing. Last and Volume stay pointers so absent
// or null upstream values survive decoding as nil instead of zero.
type tickerRow struct {
	Base       string     `json:"base"`
	Target     string     `json:"target"`
	Market     marketInfo `json:"market"`
	Last       *float64   `json:"last"`
	Volume     *float64   `json:"volume"`
	TrustScore string     `json:"trust_score"`
}

type marketInfo struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}
