package proxmox

import (
	"errors"
	"fmt"
)

// ErrUnknownFilter is the error for a filter name with no registered
// predicate.
var ErrUnknownFilter = errors.New("guest filter not found")

// GuestFilter is a named predicate over guests.
type GuestFilter func(Guest) bool

var guestFilters = map[string]GuestFilter{
	"qemu":    func(g Guest) bool { return g.Kind == KindQemu },
	"lxc":     func(g Guest) bool { return g.Kind == KindLXC },
	"running": func(g Guest) bool { return g.Status == StatusRunning },
	"stopped": func(g Guest) bool { return g.Status == StatusStopped },
}

// ParseFilters resolves filter names into predicates.
func ParseFilters(names []string) ([]GuestFilter, error) {
	filters := make([]GuestFilter, 0, len(names))
	for _, name := range names {
		filter, ok := guestFilters[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w", name, ErrUnknownFilter)
		}
		filters = append(filters, filter)
	}
	return filters, nil
}

// FilterGuests returns the guests matching every filter.
func FilterGuests(guests []Guest, filters []GuestFilter) []Guest {
	if len(filters) == 0 {
		return guests
	}

	result := make([]Guest, 0, len(guests))
	for _, guest := range guests {
		ok := true
		for _, filter := range filters {
			ok = ok && filter(guest)
		}
		if ok {
			result = append(result, guest)
		}
	}
	return result
}
