package google

import (
	"fmt"
	"strconv"
	"strings"
)

// parseEventIDs collects the numeric ids in the first column. Headers,
// blanks and anything that is not a positive integer are skipped.
func parseEventIDs(values [][]any) map[int64]struct{} {
	out := make(map[int64]struct{}, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}
