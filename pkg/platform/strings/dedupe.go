package strings

import "sort"

// DedupeSorted returns a sorted copy of values with duplicates and empty
// strings removed. Used wherever a capability code list must be stable for
// clients and exports.
func DedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
