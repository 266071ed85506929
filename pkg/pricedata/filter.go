package pricedata

import "strings"

// FilterRecords narrows records to those matching the caller-supplied pair
// list. A record matches when either its symbol or its id is present in
// pairs; comparison is case-insensitive on both sides. An empty pair list is
// a no-op and returns records unchanged.
func FilterRecords(records []PriceRecord, pairs []string) []PriceRecord {
	if len(pairs) == 0 {
		return records
	}
	wanted := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		wanted[strings.ToLower(p)] = struct{}{}
	}
	out := make([]PriceRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := wanted[strings.ToLower(rec.Symbol)]; ok {
			out = append(out, rec)
			continue
		}
		if _, ok := wanted[strings.ToLower(rec.ID)]; ok {
			out = append(out, rec)
		}
	}
	return out
}
