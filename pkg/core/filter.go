package core

// FilterBySinceLimit keeps records stamped at or after since (when since > 0)
// and then keeps at most limit records from the head of the list (when limit > 0).
// Records without a timestamp are dropped only when a since bound is given.
func FilterBySinceLimit[T any](items []T, stamp func(*T) *int64, since int64, limit int) []T {
	out := items
	if since > 0 {
		out = make([]T, 0, len(items))
		for i := range items {
			if ts := stamp(&items[i]); ts != nil && *ts >= since {
				out = append(out, items[i])
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
