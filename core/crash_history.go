package core

import (
	"reflect"
	"runtime"
	"sync"
)

const defaultCrashHistoryCapacity = 100

// crashHistory is a fixed-size ring of the most recent crash records.
type crashHistory struct {
	mu    sync.Mutex
	items []CrashInfo
	head  int
	count int
}

func newCrashHistory(capacity int) crashHistory {
	if capacity < 1 {
		capacity = defaultCrashHistoryCapacity
	}
	return crashHistory{items: make([]CrashInfo, capacity)}
}

func (h *crashHistory) Add(info CrashInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = info
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

func (h *crashHistory) Recent(limit int) []CrashInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]CrashInfo, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

// resolveTaskName prefers the explicit name, then the function's symbol name.
func resolveTaskName(fn any, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fn == nil {
		return ""
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}

	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	return f.Name()
}
