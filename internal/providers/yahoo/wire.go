package yahoo

// Wire models for the upstream finance API. Numeric fields inside
// quoteSummary modules arrive wrapped as {raw, fmt}; only raw is extracted.

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol        string   `json:"symbol"`
		LongName      string   `json:"longName"`
		ShortName     string   `json:"shortName"`
		ExchangeName  string   `json:"exchangeName"`
		PreviousClose *float64 `json:"previousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol                     string   `json:"symbol"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice"`
	RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
	RegularMarketOpen          *float64 `json:"regularMarketOpen"`
	RegularMarketDayHigh       *float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        *float64 `json:"regularMarketDayLow"`
	RegularMarketVolume        *float64 `json:"regularMarketVolume"`
	RegularMarketTime          *int64   `json:"regularMarketTime"`
	Bid                        *float64 `json:"bid"`
	Ask                        *float64 `json:"ask"`
	FiftyTwoWeekHigh           *float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow            *float64 `json:"fiftyTwoWeekLow"`
	AverageDailyVolume3Month   *float64 `json:"averageDailyVolume3Month"`
	MarketCap                  *float64 `json:"marketCap"`
	Exchange                   string   `json:"exchange"`
	FullExchangeName           string   `json:"fullExchangeName"`
	MarketState                string   `json:"marketState"`
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
		QuoteType string `json:"quoteType"`
		TypeDisp  string `json:"typeDisp"`
	} `json:"quotes"`
}

// wrapped is the {raw, fmt} envelope around quoteSummary numerics.
type wrapped struct {
	Raw *float64 `json:"raw"`
}

func (w *wrapped) value() *float64 {
	if w == nil {
		return nil
	}
	return w.Raw
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []summaryResult `json:"result"`
		Error  *apiError       `json:"error"`
	} `json:"quoteSummary"`
}

type summaryResult struct {
	AssetProfile         *assetProfileModule  `json:"assetProfile"`
	SummaryProfile       *assetProfileModule  `json:"summaryProfile"`
	Price                *priceModule         `json:"price"`
	DefaultKeyStatistics *keyStatisticsModule `json:"defaultKeyStatistics"`
	FinancialData        *financialDataModule `json:"financialData"`
	SummaryDetail        *summaryDetailModule `json:"summaryDetail"`
}

type assetProfileModule struct {
	Sector              string `json:"sector"`
	Industry            string `json:"industry"`
	LongBusinessSummary string `json:"longBusinessSummary"`
	Website             string `json:"website"`
	Country             string `json:"country"`
	City                string `json:"city"`
	FullTimeEmployees   *int   `json:"fullTimeEmployees"`
	CompanyOfficers     []struct {
		Name  string `json:"name"`
		Title string `json:"title"`
	} `json:"companyOfficers"`
}

type priceModule struct {
	LongName     string `json:"longName"`
	ShortName    string `json:"shortName"`
	ExchangeName string `json:"exchangeName"`
	Currency     string `json:"currency"`
}

type keyStatisticsModule struct {
	PegRatio                *wrapped `json:"pegRatio"`
	PriceToBook             *wrapped `json:"priceToBook"`
	TrailingEps             *wrapped `json:"trailingEps"`
	EarningsQuarterlyGrowth *wrapped `json:"earningsQuarterlyGrowth"`
}

type financialDataModule struct {
	ProfitMargins    *wrapped `json:"profitMargins"`
	OperatingMargins *wrapped `json:"operatingMargins"`
	ReturnOnEquity   *wrapped `json:"returnOnEquity"`
	ReturnOnAssets   *wrapped `json:"returnOnAssets"`
	RevenueGrowth    *wrapped `json:"revenueGrowth"`
	CurrentRatio     *wrapped `json:"currentRatio"`
	QuickRatio       *wrapped `json:"quickRatio"`
	DebtToEquity     *wrapped `json:"debtToEquity"`
}

type summaryDetailModule struct {
	TrailingPE                   *wrapped `json:"trailingPE"`
	PriceToSalesTrailing12Months *wrapped `json:"priceToSalesTrailing12Months"`
	DividendYield                *wrapped `json:"dividendYield"`
	PayoutRatio                  *wrapped `json:"payoutRatio"`
}
