package holders

import (
	"sort"
	"strings"
)

// Holding is one line of the snapshot: an owner and how many tokens it holds.
type Holding struct {
	Owner string
	Count uint64
}

// Holdings tallies owner -> token count.
// Entries come back in first-seen order unless sorted is requested.
// Not safe for concurrent use, the enumerator is its only writer.
type Holdings struct {
	index   map[string]int
	entries []Holding
	total   uint64
}

func NewHoldings() *Holdings {
	return &Holdings{index: make(map[string]int)}
}

// Record adds one token to owner, creating the entry on first sight.
func (h *Holdings) Record(owner string) {
	if i, ok := h.index[owner]; ok {
		h.entries[i].Count++
	} else {
		h.index[owner] = len(h.entries)
		h.entries = append(h.entries, Holding{Owner: owner, Count: 1})
	}
	h.total++
}

func (h *Holdings) Count(owner string) uint64 {
	if i, ok := h.index[owner]; ok {
		return h.entries[i].Count
	}
	return 0
}

// Len is the number of distinct owners.
func (h *Holdings) Len() int {
	return len(h.entries)
}

// Total is the number of tokens recorded, equal to the supply after a full run.
func (h *Holdings) Total() uint64 {
	return h.total
}

// Entries returns a copy of the tally. sorted orders owners by address, case-insensitively.
func (h *Holdings) Entries(sorted bool) []Holding {
	out := make([]Holding, len(h.entries))
	copy(out, h.entries)
	if sorted {
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Owner) < strings.ToLower(out[j].Owner)
		})
	}
	return out
}

// Top returns the n biggest holders, ties keep first-seen order.
func (h *Holdings) Top(n int) []Holding {
	out := h.Entries(false)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
