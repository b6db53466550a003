package models

import "strings"

// AssetType classifies a search hit.
type AssetType string

const (
	AssetTypeStock    AssetType = "STOCK"
	AssetTypeETF      AssetType = "ETF"
	AssetTypeIndex    AssetType = "INDEX"
	AssetTypeFund     AssetType = "FUND"
	AssetTypeCurrency AssetType = "CURRENCY"
	AssetTypeCrypto   AssetType = "CRYPTO"
	AssetTypeFuture   AssetType = "FUTURE"
	AssetTypeOption   AssetType = "OPTION"
	AssetTypeUnknown  AssetType = "UNKNOWN"
)

// SearchHit represents one normalized symbol-search result.
type SearchHit struct {
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name"`
	Exchange   string    `json:"exchange,omitempty"`
	AssetType  AssetType `json:"asset_type"`
	Region     string    `json:"region,omitempty"`
	MatchScore float64   `json:"match_score"`
}

// ParseAssetType maps upstream instrument-type labels to the closed
// AssetType set.
func ParseAssetType(raw string) AssetType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "EQUITY", "STOCK", "COMMON STOCK", "SHARE":
		return AssetTypeStock
	case "ETF", "EXCHANGE TRADED FUND":
		return AssetTypeETF
	case "INDEX":
		return AssetTypeIndex
	case "FUND", "MUTUALFUND", "MUTUAL FUND", "CLOSED-END FUND":
		return AssetTypeFund
	case "CURRENCY", "FOREX", "PHYSICAL CURRENCY":
		return AssetTypeCurrency
	case "CRYPTO", "CRYPTOCURRENCY", "DIGITAL CURRENCY":
		return AssetTypeCrypto
	case "FUTURE", "FUTURES":
		return AssetTypeFuture
	case "OPTION", "OPTIONS":
		return AssetTypeOption
	default:
		return AssetTypeUnknown
	}
}
