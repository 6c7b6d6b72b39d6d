package util

import (
	"strconv"
	"strings"
)

// JoinInt64s renders ids as a comma-joined list, the format the status
// store's batched functions accept.
func JoinInt64s(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
