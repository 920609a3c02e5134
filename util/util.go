// Package util contains misc internal utilities.
package util

import (
	"strconv"
	"strings"
)

// IntSliceToCSV convets a slice of ints to CSV formatted data.
// e.g., []int{1,2,3,4,5} => "1,2,3,4,5"
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// FloatSliceToStrings formats each float with the shortest representation
// that round trips
func FloatSliceToStrings(fs []float64) []string {
	s := make([]string, len(fs))
	for i, v := range fs {
		s[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return s
}

// BitwiseOr combines a list of flag values into one mask
func BitwiseOr(is []int) int {
	var out int
	for _, v := range is {
		out |= v
	}
	return out
}

// Clamp limits input to the closed interval [low, high]
func Clamp(input, low, high float64) float64 {
	if input < low {
		return low
	}
	if input > high {
		return high
	}
	return input
}

// ClampInt is Clamp for ints
func ClampInt(input, low, high int) int {
	if input < low {
		return low
	}
	if input > high {
		return high
	}
	return input
}

// Arange returns the ints [start, end)
func Arange(start, end int) []int {
	if end <= start {
		return []int{}
	}
	out := make([]int, end-start)
	for i := range out {
		out[i] = start + i
	}
	return out
}
