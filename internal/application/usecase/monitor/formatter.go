package monitor

import (
	"fmt"
	"strings"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiDim    = "\033[2m"
)

func colorize(s, c string) string { return c + s + ansiReset }

type Formatter struct {
	// 费率差着色阈值
	Threshold float64
	Color     bool
}

func NewFormatter(threshold float64, color bool) *Formatter {
	return &Formatter{Threshold: threshold, Color: color}
}

func (f *Formatter) paint(s, c string) string {
	if !f.Color {
		return s
	}
	return colorize(s, c)
}

func pct(rate float64) string {
	return fmt.Sprintf("%+.4f%%", rate*100)
}

// RenderDiffs 费率差表格
func (f *Formatter) RenderDiffs(rows []model.FundingDiff) []string {
	if len(rows) == 0 {
		return []string{f.paint("(no funding differences)", ansiDim)}
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, f.paint(fmt.Sprintf("%-14s %-16s %-22s %-22s %s", "SYMBOL", "PAIR", "RATE A", "RATE B", "DIFF"), ansiDim))
	for _, r := range rows {
		col := ansiYellow
		switch dsvc.DiffColor(r.RateA-r.RateB, f.Threshold) {
		case +1:
			col = ansiGreen
		case -1:
			col = ansiRed
		}
		a := fmt.Sprintf("%s(%dh)", pct(r.RateA), r.IntervalA)
		b := fmt.Sprintf("%s(%dh)", pct(r.RateB), r.IntervalB)
		lines = append(lines, fmt.Sprintf("%-14s %-16s %-22s %-22s %s",
			r.Symbol, r.VenueA+"/"+r.VenueB, a, b, f.paint(pct(r.Diff), col)))
	}
	return lines
}

// RenderRates 单交易所费率排行
func (f *Formatter) RenderRates(venue string, rates []model.FundingRate) []string {
	var sb strings.Builder
	sb.WriteString(f.paint(strings.ToUpper(venue)+":", ansiDim))
	for _, r := range rates {
		col := ansiGreen
		if r.Rate < 0 {
			col = ansiRed
		}
		sb.WriteString(" ")
		sb.WriteString(r.Symbol)
		sb.WriteString("=")
		sb.WriteString(f.paint(pct(r.Rate), col))
	}
	return []string{sb.String()}
}
