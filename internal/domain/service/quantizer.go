package service

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"fundarb/internal/domain/model"
)

// RoundingMode 价格取整方向
type RoundingMode int

const (
	// Floor 买入/开多价格，不多付
	Floor RoundingMode = iota
	// Ceiling 卖出/开空价格，不少收
	Ceiling
)

func (m RoundingMode) String() string {
	if m == Ceiling {
		return "CEILING"
	}
	return "FLOOR"
}

// RoundingFor 买单向下取整，卖单向上取整
func RoundingFor(buy bool) RoundingMode {
	if buy {
		return Floor
	}
	return Ceiling
}

// RoundPrice 按小数位数对价格取整
func RoundPrice(price float64, scale int32, mode RoundingMode) float64 {
	if !finite(price) {
		return 0
	}
	if scale < 0 {
		scale = 0
	}
	d := decimal.NewFromFloat(price)
	if mode == Ceiling {
		d = d.RoundCeil(scale)
	} else {
		d = d.RoundFloor(scale)
	}
	f, _ := d.Float64()
	return f
}

// RoundQuantity 按 stepSize 向下取整
// 结果小于 minQty 时返回 0，调用方必须把 0 视为无法下单。
func RoundQuantity(qty, stepSize, minQty float64) float64 {
	if !finite(qty) || !finite(stepSize) || qty <= 0 || stepSize <= 0 {
		return 0
	}
	q := decimal.NewFromFloat(qty)
	step := decimal.NewFromFloat(stepSize)
	floored := q.Sub(q.Mod(step))
	if !floored.IsPositive() {
		return 0
	}
	if minQty > 0 && floored.LessThan(decimal.NewFromFloat(minQty)) {
		return 0
	}
	f, _ := floored.Float64()
	return f
}

// OffsetPrice 在参考价基础上按百分比偏移并取整
// 买单 ref*(1-pct) 向下取整，卖单 ref*(1+pct) 向上取整。
func OffsetPrice(ref, pct float64, scale int32, buy bool) float64 {
	if ref <= 0 {
		return 0
	}
	r := decimal.NewFromFloat(ref)
	off := decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100))
	var p decimal.Decimal
	if buy {
		p = r.Mul(decimal.NewFromInt(1).Sub(off))
	} else {
		p = r.Mul(decimal.NewFromInt(1).Add(off))
	}
	f, _ := p.Float64()
	return RoundPrice(f, scale, RoundingFor(buy))
}

// DecimalScale 返回一组文本数值中最大的有效小数位数（去掉末尾 0）
func DecimalScale(values ...string) int32 {
	var scale int32
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			continue
		}
		if s := significantDecimals(d.String()); s > scale {
			scale = s
		}
	}
	return scale
}

// StepScale stepSize 对应的小数位数，0.001 -> 3
func StepScale(step float64) int32 {
	if step <= 0 || !finite(step) {
		return 0
	}
	return significantDecimals(decimal.NewFromFloat(step).String())
}

// FormatDecimal 以精确十进制文本输出，避免 1e-05 之类的科学计数法
func FormatDecimal(v float64) string {
	if !finite(v) {
		return "0"
	}
	return decimal.NewFromFloat(v).String()
}

func significantDecimals(s string) int32 {
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return int32(len(strings.TrimRight(s[i+1:], "0")))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ErrQuantityInvalid 取整后数量为 0 或超出交易所限制
var ErrQuantityInvalid = errors.New("quantity invalid")

// SizeOrder 按 margin*leverage/price 计算下单数量并按交易所约束取整
// ContractValue 大于 0 时换算为张数。
func SizeOrder(margin float64, leverage int, price float64, limit model.InstrumentLimit) (float64, error) {
	if margin <= 0 || leverage <= 0 || price <= 0 || !finite(margin) || !finite(price) {
		return 0, fmt.Errorf("%w: margin=%v leverage=%d price=%v", ErrQuantityInvalid, margin, leverage, price)
	}
	raw := decimal.NewFromFloat(margin).
		Mul(decimal.NewFromInt(int64(leverage))).
		Div(decimal.NewFromFloat(price))
	if limit.ContractValue > 0 {
		raw = raw.Div(decimal.NewFromFloat(limit.ContractValue))
	}
	rawQty, _ := raw.Float64()

	qty := RoundQuantity(rawQty, limit.StepSize, limit.MinQty)
	if qty <= 0 {
		return 0, fmt.Errorf("%w: %s raw %s below step %s / min %s", ErrQuantityInvalid,
			limit.Symbol, raw.StringFixed(8), FormatDecimal(limit.StepSize), FormatDecimal(limit.MinQty))
	}
	if limit.MaxQty > 0 && qty > limit.MaxQty {
		return 0, fmt.Errorf("%w: %s quantity %s above max %s", ErrQuantityInvalid,
			limit.Symbol, FormatDecimal(qty), FormatDecimal(limit.MaxQty))
	}
	return qty, nil
}
