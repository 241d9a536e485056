package service

import "math"

// MinRateDiff 小于该值的费率差视为噪声
const MinRateDiff = 1e-8

// RateDiff 两个交易所的费率差绝对值
func RateDiff(a, b float64) float64 {
	return math.Abs(a - b)
}

// DiffColor 看板着色：-1 红，0 黄，+1 绿
func DiffColor(diff, threshold float64) int {
	if diff >= threshold {
		return +1
	}
	if diff <= -threshold {
		return -1
	}
	return 0
}
