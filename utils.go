package rangeassign

import (
	"fmt"
	"regexp"
	"strings"
)

// GetPairIndex maps the unordered pair {i, j}, i != j, of n agents to
// 0..n(n-1)/2-1. Both orders give the same index.
func GetPairIndex(i, j, n int) int {
	if j < i {
		i, j = j, i
	}
	count := 0
	for l := 0; l < i; l++ {
		count += n - 1 - l
	}
	return count + j - i - 1
}

// GetArcIndex maps the ordered pair (i, j), i != j, of n agents to
// 0..n(n-1)-1.
func GetArcIndex(i, j, n int) int {
	val := i*(n-1) + j
	if j > i {
		val--
	}
	return val
}

// FormatArcMatrix renders a 0/1 adjacency matrix for log output.
func FormatArcMatrix(a [][]int) string {
	var sb strings.Builder
	for _, x := range a {
		for _, y := range x {
			fmt.Fprintf(&sb, "%d,", y)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

var (
	jsonNumbers  = regexp.MustCompile(`\s*([-]?[0-9]+(\.[0-9]+)?(e[-+]?[0-9]+)?),\s+([-]?[0-9]+(\.[0-9]+)?(e[-+]?[0-9]+)?)(,)?`)
	jsonBrackets = regexp.MustCompile(`\[(([-]?[0-9]+(\.[0-9]+)?(e[-+]?[0-9]+)?,)+[-]?[0-9]+(\.[0-9]+)?(e[-+]?[0-9]+)?)\s+\](,?)(\s+)`)
)

// SanitizeJsonArrayLineBreaks puts numeric arrays of indented JSON on one line.
func SanitizeJsonArrayLineBreaks(json string) string {
	res := json
	for jsonNumbers.MatchString(res) {
		res = jsonNumbers.ReplaceAllString(res, "$1,$4$7")
	}
	for jsonBrackets.MatchString(res) {
		res = jsonBrackets.ReplaceAllString(res, "[$1]$7$8")
	}
	return res
}
