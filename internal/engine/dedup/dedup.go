package dedup

import "github.com/crimson-sun/fortiwatch/internal/model"

// DefaultMaxSize is the capacity of the rolling log window.
const DefaultMaxSize = 100

// Merge places incoming ahead of buffer, keeps the first occurrence of each
// identity and truncates the result to maxSize, dropping the oldest (tail)
// records. Incoming records shadow buffered records with the same identity.
// Neither input is modified. A maxSize <= 0 uses DefaultMaxSize.
func Merge(buffer, incoming []model.Record, maxSize int) []model.Record {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	n := len(incoming) + len(buffer)
	if n > maxSize {
		n = maxSize
	}
	result := make([]model.Record, 0, n)
	seen := make(map[string]struct{}, n)

	for _, src := range [][]model.Record{incoming, buffer} {
		for _, r := range src {
			if len(result) == maxSize {
				return result
			}
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			result = append(result, r)
		}
	}
	return result
}
