package proxmox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var filterGuests = []Guest{
	{VMID: 100, Name: "web", Status: StatusRunning, Kind: KindQemu},
	{VMID: 101, Name: "db", Status: StatusStopped, Kind: KindQemu},
	{VMID: 200, Name: "dns", Status: StatusRunning, Kind: KindLXC},
}

func TestParseFiltersUnknown(t *testing.T) {
	_, err := ParseFilters([]string{"running", "paused"})
	require.ErrorIs(t, err, ErrUnknownFilter)
}

func TestFilterGuests(t *testing.T) {
	cases := []struct {
		names []string
		want  []GuestID
	}{
		{names: nil, want: []GuestID{100, 101, 200}},
		{names: []string{"qemu"}, want: []GuestID{100, 101}},
		{names: []string{"lxc"}, want: []GuestID{200}},
		{names: []string{"running"}, want: []GuestID{100, 200}},
		{names: []string{"qemu", "running"}, want: []GuestID{100}},
		{names: []string{"lxc", "stopped"}, want: []GuestID{}},
	}

	for _, tc := range cases {
		filters, err := ParseFilters(tc.names)
		require.NoError(t, err)

		got := make([]GuestID, 0)
		for _, guest := range FilterGuests(filterGuests, filters) {
			got = append(got, guest.VMID)
		}
		require.Equal(t, tc.want, got, "filters: %v", tc.names)
	}
}
