package model

import "strings"

// 交易所标识，作为网关注册表的 key
const (
	VenueBinance = "binance"
	VenueOKX     = "okx"
	VenueBitget  = "bitget"
	VenueBybit   = "bybit"
)

var venueAliases = map[string]string{
	"bn":      VenueBinance,
	"binance": VenueBinance,
	"okx":     VenueOKX,
	"ok":      VenueOKX,
	"bg":      VenueBitget,
	"bitget":  VenueBitget,
	"by":      VenueBybit,
	"bybit":   VenueBybit,
}

// ResolveVenue 把命令中的简写（bn/bg/by/okx）解析为交易所标识
func ResolveVenue(s string) (string, bool) {
	v, ok := venueAliases[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}
