package domain

import "time"

type Quote struct {
	Ticker   string    `json:"ticker"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
	AsOf     time.Time `json:"as_of"`
}

type CompanyProfile struct {
	Ticker    string `json:"ticker"`
	Name      string `json:"name"`
	Sector    string `json:"sector,omitempty"`
	MarketCap int64  `json:"market_cap,omitempty"`
	Summary   string `json:"summary"`
}

type Article struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Body  string `json:"body"`
}
