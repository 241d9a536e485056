package service

import (
	"strings"
	"unicode"

	"fundarb/internal/domain/model"
)

// DefaultQuote 缺少计价币时补齐的后缀
const DefaultQuote = "USDT"

// 按长度降序，USDT 必须先于 USD 匹配
var quoteAssets = []string{"USDT", "USDC", "USD"}

var venueSuffixes = []string{"-SWAP", "_UMCBL", "_DMCBL", "_CMCBL"}

// dropSeparators 去掉分隔符和所有空白（含 \t、NBSP、全角空格）
func dropSeparators(r rune) rune {
	switch r {
	case '-', '_', '/', ':':
		return -1
	}
	return dropSpaces(r)
}

func dropSpaces(r rune) rune {
	if unicode.IsSpace(r) {
		return -1
	}
	return r
}

// NormalizeSymbol 把各交易所的合约名统一为 BASEQUOTE 形式
// 例: BTC-USDT-SWAP -> BTCUSDT, BTCUSDT_UMCBL -> BTCUSDT, btc -> BTCUSDT
// 对任意输入都有返回值，且对已归一化的结果幂等。
func NormalizeSymbol(raw, venue string) string {
	s := strings.ToUpper(strings.Map(dropSpaces, raw))
	for _, suffix := range venueSuffixes {
		s = strings.TrimSuffix(s, suffix)
	}
	s = strings.Map(dropSeparators, s)
	if s == "" {
		return ""
	}
	if _, ok := splitQuote(s); ok {
		return s
	}
	return s + DefaultQuote
}

// ToVenueSymbol 把归一化 symbol 转回交易所格式
func ToVenueSymbol(symbol, venue string) string {
	s := NormalizeSymbol(symbol, venue)
	if venue != model.VenueOKX {
		return s
	}
	quote, ok := splitQuote(s)
	if !ok {
		return s
	}
	return strings.TrimSuffix(s, quote) + "-" + quote + "-SWAP"
}

// BaseAsset 返回币种，BTCUSDT -> BTC
func BaseAsset(symbol string) string {
	s := NormalizeSymbol(symbol, "")
	if quote, ok := splitQuote(s); ok {
		return strings.TrimSuffix(s, quote)
	}
	return s
}

func splitQuote(s string) (string, bool) {
	for _, q := range quoteAssets {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return q, true
		}
	}
	return "", false
}
