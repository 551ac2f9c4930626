package offsync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonitor_OfflineDerivation(t *testing.T) {
	cases := []struct {
		manual    bool
		reachable bool
		offline   bool
	}{
		{manual: false, reachable: true, offline: false},
		{manual: false, reachable: false, offline: true},
		{manual: true, reachable: true, offline: true},
		{manual: true, reachable: false, offline: true},
	}

	for _, tc := range cases {
		m := NewMonitor()
		m.SetManualOffline(tc.manual)
		m.SetNetworkReachable(tc.reachable)
		require.Equal(t, tc.offline, m.Offline(),
			"manual=%v reachable=%v", tc.manual, tc.reachable)
	}
}

func TestMonitor_EdgesOnly(t *testing.T) {
	m := NewMonitor()

	var edges []bool
	unsubscribe := m.Subscribe(func(offline bool) {
		edges = append(edges, offline)
	})
	defer unsubscribe()

	// Repeated reports of the same derived state are not edges.
	m.SetNetworkReachable(true)
	m.SetNetworkReachable(true)
	require.Empty(t, edges)

	m.SetNetworkReachable(false) // online -> offline
	m.SetNetworkReachable(false) // offline -> offline, no edge
	m.SetNetworkReachable(true)  // offline -> online
	require.Equal(t, []bool{true, false}, edges)

	// Manual override while reachable: each flip is an edge.
	m.SetManualOffline(true)
	m.SetManualOffline(true)
	m.SetManualOffline(false)
	require.Equal(t, []bool{true, false, true, false}, edges)

	// Going unreachable while manually offline is not an edge.
	m.SetManualOffline(true)
	m.SetNetworkReachable(false)
	require.Equal(t, []bool{true, false, true, false, true}, edges)
}

func TestMonitor_Unsubscribe(t *testing.T) {
	m := NewMonitor()

	calls := 0
	unsubscribe := m.Subscribe(func(bool) { calls++ })

	m.SetNetworkReachable(false)
	require.Equal(t, 1, calls)

	unsubscribe()
	m.SetNetworkReachable(true)
	require.Equal(t, 1, calls)
}
