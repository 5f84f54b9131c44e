package rank

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bastiangx/wordmux/pkg/store"
)

const (
	selectionsTable  = "history.selections"
	impressionsTable = "history.impressions"

	// DefaultHistoryUsers bounds how many users' histories are kept in memory.
	DefaultHistoryUsers = 10000
)

type userHistory struct {
	selections  map[string]int
	impressions map[string]int
}

func newUserHistory() *userHistory {
	return &userHistory{selections: map[string]int{}, impressions: map[string]int{}}
}

// History tracks what each user picked and was shown. At most size users are
// kept live; the least recently used ones are parked in flat cold tables so
// they are still persisted and come back on their next request.
type History struct {
	mu      sync.Mutex
	users   *lru.Cache[string, *userHistory]
	coldSel store.Table
	coldImp store.Table
	persist store.Persistence
}

// NewHistory keeps at most size users live. persist may be nil.
func NewHistory(size int, persist store.Persistence) (*History, error) {
	if size <= 0 {
		size = DefaultHistoryUsers
	}
	h := &History{coldSel: store.Table{}, coldImp: store.Table{}, persist: persist}
	users, err := lru.NewWithEvict[string, *userHistory](size, h.park)
	if err != nil {
		return nil, fmt.Errorf("history cache: %w", err)
	}
	h.users = users
	return h, nil
}

// park runs on eviction, with mu held by whoever added to the cache.
func (h *History) park(user string, uh *userHistory) {
	if len(uh.selections) > 0 {
		h.coldSel[user] = uh.selections
	}
	if len(uh.impressions) > 0 {
		h.coldImp[user] = uh.impressions
	}
}

// Load restores persisted selections and impressions.
func (h *History) Load(ctx context.Context) error {
	if h.persist == nil {
		return nil
	}
	sel, err := h.persist.Load(ctx, selectionsTable)
	if err != nil {
		return fmt.Errorf("load selections: %w", err)
	}
	imp, err := h.persist.Load(ctx, impressionsTable)
	if err != nil {
		return fmt.Errorf("load impressions: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for user, row := range sel {
		uh := h.get(user)
		for text, n := range row {
			uh.selections[text] += n
		}
	}
	for user, row := range imp {
		uh := h.get(user)
		for text, n := range row {
			uh.impressions[text] += n
		}
	}
	return nil
}

// get must be called with mu held. A parked user is moved back into the cache.
func (h *History) get(user string) *userHistory {
	uh, ok := h.users.Get(user)
	if ok {
		return uh
	}
	uh = newUserHistory()
	if row, ok := h.coldSel[user]; ok {
		uh.selections = row
		delete(h.coldSel, user)
	}
	if row, ok := h.coldImp[user]; ok {
		uh.impressions = row
		delete(h.coldImp, user)
	}
	h.users.Add(user, uh)
	return uh
}

// peek finds user's history without touching recency. mu must be held.
func (h *History) peek(user string) (selections, impressions map[string]int, ok bool) {
	if uh, ok := h.users.Peek(user); ok {
		return uh.selections, uh.impressions, true
	}
	sel, okSel := h.coldSel[user]
	imp, okImp := h.coldImp[user]
	return sel, imp, okSel || okImp
}

func key(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// RecordSelection counts a pick of text by user and persists the history.
func (h *History) RecordSelection(user, text string) {
	k := key(text)
	if user == "" || k == "" {
		return
	}
	h.mu.Lock()
	uh := h.get(user)
	uh.selections[k]++
	// a pick implies it was shown
	if uh.impressions[k] < uh.selections[k] {
		uh.impressions[k] = uh.selections[k]
	}
	h.mu.Unlock()

	if h.persist != nil {
		h.persist.SaveAsync(selectionsTable, h.snapshot(true))
		h.persist.SaveAsync(impressionsTable, h.snapshot(false))
	}
}

// RecordImpressions counts that texts were shown to user. Impressions are
// persisted together with the next selection.
func (h *History) RecordImpressions(user string, texts []string) {
	if user == "" || len(texts) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	uh := h.get(user)
	for _, t := range texts {
		if k := key(t); k != "" {
			uh.impressions[k]++
		}
	}
}

// snapshot copies live and parked users' selections, or impressions when
// selections is false, at write time.
func (h *History) snapshot(selections bool) func() store.Table {
	return func() store.Table {
		h.mu.Lock()
		defer h.mu.Unlock()
		cold := h.coldImp
		if selections {
			cold = h.coldSel
		}
		out := cold.Clone()
		for _, user := range h.users.Keys() {
			uh, ok := h.users.Peek(user)
			if !ok {
				continue
			}
			row := uh.impressions
			if selections {
				row = uh.selections
			}
			for text, n := range row {
				out.Incr(user, text, n)
			}
		}
		return out
	}
}

// Preference is how often user picked text, saturating at ten picks.
func (h *History) Preference(user, text string) float64 {
	if user == "" {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	sel, _, ok := h.peek(user)
	if !ok {
		return 0
	}
	return min(float64(sel[key(text)])/10, 1.0)
}

// CTR is selections over impressions of text for user, in [0,1].
func (h *History) CTR(user, text string) float64 {
	if user == "" {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	sel, imps, ok := h.peek(user)
	if !ok {
		return 0
	}
	k := key(text)
	imp := imps[k]
	if imp == 0 {
		return 0
	}
	return min(float64(sel[k])/float64(imp), 1.0)
}

// Len is the number of live users.
func (h *History) Len() int {
	return h.users.Len()
}
