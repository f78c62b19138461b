package logging

import (
	"log/slog"
	"strings"
)

type kv struct {
	key   string
	value slog.Value
}

// fieldSet flattens attributes into dotted keys. A repeated key keeps the
// position of its first appearance and the value of its last.
type fieldSet struct {
	list  []kv
	index map[string]int
}

func (s *fieldSet) add(prefix string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	value := attr.Value.Resolve()
	key := joinKey(prefix, attr.Key)
	if value.Kind() == slog.KindGroup {
		for _, child := range value.Group() {
			s.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[key]; ok {
		s.list[i].value = value
		return
	}
	s.index[key] = len(s.list)
	s.list = append(s.list, kv{key: key, value: value})
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

// collectFields returns the logger's attributes followed by the record's,
// all nested under groups.
func collectFields(groups []string, inherited []slog.Attr, record slog.Record) []kv {
	prefix := strings.Join(groups, ".")
	set := fieldSet{list: make([]kv, 0, len(inherited)+record.NumAttrs())}
	for _, attr := range inherited {
		set.add(prefix, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		set.add(prefix, attr)
		return true
	})
	return set.list
}
