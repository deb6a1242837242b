package notify

import "strings"

type eventFilter struct {
	all bool
	set map[string]struct{}
}

// newEventFilter matches every event type when events is empty. An entry
// ending in ".*" matches the prefix, so "booking.*" covers all booking events.
func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	if _, ok := f.set[evt]; ok {
		return true
	}
	for i := len(evt) - 1; i > 0; i-- {
		if evt[i] != '.' {
			continue
		}
		if _, ok := f.set[evt[:i]+".*"]; ok {
			return true
		}
	}
	return false
}
