// Package selection parses the index selections used to pick rows from a
// numbered model table.
package selection

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseIndices parses a selection like "1,3,12-15" or "all" against a table
// of n rows. Input indices are 1-based; the result is 0-based, ascending and
// free of duplicates.
func ParseIndices(input string, n int) ([]int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, errors.New("empty selection")
	}
	if strings.EqualFold(s, "all") {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}

	picked := make(map[int]bool)
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, fmt.Errorf("empty item in selection %q", input)
		}

		var start, end int
		if i := strings.IndexByte(tok, '-'); i >= 0 {
			lo, err := strconv.Atoi(strings.TrimSpace(tok[:i]))
			if err != nil {
				return nil, fmt.Errorf("invalid range %q", tok)
			}
			hi, err := strconv.Atoi(strings.TrimSpace(tok[i+1:]))
			if err != nil {
				return nil, fmt.Errorf("invalid range %q", tok)
			}
			if hi < lo {
				return nil, fmt.Errorf("range %q runs backwards", tok)
			}
			start, end = lo, hi
		} else {
			v, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("invalid selection item %q", tok)
			}
			start, end = v, v
		}

		for v := start; v <= end; v++ {
			if v < 1 || v > n {
				return nil, fmt.Errorf("selection %d is out of range 1-%d", v, n)
			}
			picked[v-1] = true
		}
	}

	out := make([]int, 0, len(picked))
	for v := range picked {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}
