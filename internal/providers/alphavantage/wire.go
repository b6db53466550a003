package alphavantage

// Wire models for the premium upstream. Every numeric arrives as a string
// under ordinal-prefixed keys; tolerant parsers in the mapper turn them into
// decimals or nil.

// errorEnvelope is checked on every 200 OK body before the payload is
// trusted. The upstream reports quota refusals and bad calls in-band.
type errorEnvelope struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

type globalQuoteResponse struct {
	GlobalQuote globalQuote `json:"Global Quote"`
}

type globalQuote struct {
	Symbol           string `json:"01. symbol"`
	Open             string `json:"02. open"`
	High             string `json:"03. high"`
	Low              string `json:"04. low"`
	Price            string `json:"05. price"`
	Volume           string `json:"06. volume"`
	LatestTradingDay string `json:"07. latest trading day"`
	PreviousClose    string `json:"08. previous close"`
	Change           string `json:"09. change"`
	ChangePercent    string `json:"10. change percent"`
}

type seriesBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type dailySeriesResponse struct {
	Series map[string]seriesBar `json:"Time Series (Daily)"`
}

type weeklySeriesResponse struct {
	Series map[string]seriesBar `json:"Weekly Time Series"`
}

type monthlySeriesResponse struct {
	Series map[string]seriesBar `json:"Monthly Time Series"`
}

// overviewResponse backs both fundamentals and profile; the upstream has a
// single combined endpoint.
type overviewResponse struct {
	Symbol      string `json:"Symbol"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
	Exchange    string `json:"Exchange"`
	Currency    string `json:"Currency"`
	Country     string `json:"Country"`
	Sector      string `json:"Sector"`
	Industry    string `json:"Industry"`
	Address     string `json:"Address"`

	MarketCapitalization       string `json:"MarketCapitalization"`
	PERatio                    string `json:"PERatio"`
	PEGRatio                   string `json:"PEGRatio"`
	BookValue                  string `json:"BookValue"`
	PriceToBookRatio           string `json:"PriceToBookRatio"`
	PriceToSalesRatioTTM       string `json:"PriceToSalesRatioTTM"`
	EPS                        string `json:"EPS"`
	DividendYield              string `json:"DividendYield"`
	PayoutRatio                string `json:"PayoutRatio"`
	ProfitMargin               string `json:"ProfitMargin"`
	OperatingMarginTTM         string `json:"OperatingMarginTTM"`
	ReturnOnEquityTTM          string `json:"ReturnOnEquityTTM"`
	ReturnOnAssetsTTM          string `json:"ReturnOnAssetsTTM"`
	QuarterlyRevenueGrowthYOY  string `json:"QuarterlyRevenueGrowthYOY"`
	QuarterlyEarningsGrowthYOY string `json:"QuarterlyEarningsGrowthYOY"`
	CurrentRatio               string `json:"CurrentRatio"`
	QuickRatio                 string `json:"QuickRatio"`
	DebtToEquity               string `json:"DebtToEquity"`
}

type searchResponse struct {
	BestMatches []searchMatch `json:"bestMatches"`
}

type searchMatch struct {
	Symbol     string `json:"1. symbol"`
	Name       string `json:"2. name"`
	Type       string `json:"3. type"`
	Region     string `json:"4. region"`
	Currency   string `json:"8. currency"`
	MatchScore string `json:"9. matchScore"`
}
