package domain

import "time"

// Rate описывает курс одной валюты к валюте магазина (CLP).
type Rate struct {
	Currency  string
	Value     float64
	Date      string
	Source    string
	FetchedAt time.Time
}

// BaseCurrency — валюта магазина; все курсы выражены в ней.
const BaseCurrency = "CLP"

// Происхождение значения курса.
const (
	RateSourceBCCH  = "BCCH"
	RateSourceCache = "CACHE"
	RateSourceBase  = "BASE"
)
