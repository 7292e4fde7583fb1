package route

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrSyntax is returned by Parse for malformed route text.
var ErrSyntax = errors.New("route: invalid syntax")

// ID is a logical request endpoint: the primary command in the high 16 bits
// and the sub command in the low 16 bits.
type ID uint32

// Heartbeat is the route carried by keepalive frames.
const Heartbeat ID = 0

// Merge combines a primary and sub command into a route.
func Merge(primary, sub uint16) ID {
	return ID(uint32(primary)<<16 | uint32(sub))
}

// Split returns the primary and sub command of the route.
func (r ID) Split() (primary, sub uint16) {
	return r.Primary(), r.Sub()
}

// Primary returns the high 16 bits.
func (r ID) Primary() uint16 {
	return uint16(uint32(r) >> 16)
}

// Sub returns the low 16 bits.
func (r ID) Sub() uint16 {
	return uint16(uint32(r) & 0xFFFF)
}

// Parse reads a route written as "primary-sub" or as the merged decimal
// value. The "primary-sub-merge" form produced by String is accepted when
// the merge agrees with the parts.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '('); i >= 0 && strings.HasSuffix(s, ")") {
		s = s[:i]
	}
	parts := strings.Split(s, "-")
	switch len(parts) {
	case 1:
		v, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
		return ID(v), nil
	case 2, 3:
		primary, err1 := strconv.ParseUint(parts[0], 10, 16)
		sub, err2 := strconv.ParseUint(parts[1], 10, 16)
		if err1 != nil || err2 != nil {
			return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
		r := Merge(uint16(primary), uint16(sub))
		if len(parts) == 3 {
			v, err := strconv.ParseUint(parts[2], 10, 32)
			if err != nil || ID(v) != r {
				return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
			}
		}
		return r, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
}

// ParseList parses every entry with Parse.
func ParseList(items []string) ([]ID, error) {
	out := make([]ID, 0, len(items))
	for _, item := range items {
		r, err := Parse(item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// String formats the route as "primary-sub-merge", with the registered name
// appended in parentheses when one exists.
func (r ID) String() string {
	base := fmt.Sprintf("%d-%d-%d", r.Primary(), r.Sub(), uint32(r))
	if name, ok := Name(r); ok {
		return base + "(" + name + ")"
	}
	return base
}

// Format returns r.String(). It reads better at call sites that hold a
// plain uint32.
func Format(r ID) string {
	return r.String()
}

// registry maps routes to human-readable names for diagnostics.
// It must never influence protocol decisions.
var registry = struct {
	sync.RWMutex
	names map[ID]string
}{names: make(map[ID]string)}

// Register associates a diagnostic name with a route, replacing any previous name.
func Register(r ID, name string) {
	registry.Lock()
	defer registry.Unlock()
	registry.names[r] = name
}

// RegisterAll registers every entry of the map.
func RegisterAll(names map[ID]string) {
	registry.Lock()
	defer registry.Unlock()
	for r, name := range names {
		registry.names[r] = name
	}
}

// Name returns the diagnostic name of the route.
func Name(r ID) (string, bool) {
	registry.RLock()
	defer registry.RUnlock()
	name, ok := registry.names[r]
	return name, ok
}

// Registered returns all registered routes in ascending order.
func Registered() []ID {
	registry.RLock()
	ids := make([]ID, 0, len(registry.names))
	for r := range registry.names {
		ids = append(ids, r)
	}
	registry.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clear removes every registered name.
func Clear() {
	registry.Lock()
	defer registry.Unlock()
	registry.names = make(map[ID]string)
}
