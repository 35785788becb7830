package model

import "testing"

var allStatuses = []BookingStatus{StatusPending, StatusFundedEscrow, StatusCompleted, StatusCancelled}

func TestCanTransition_TerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []BookingStatus{StatusCompleted, StatusCancelled} {
		for _, to := range allStatuses {
			if CanTransition(from, to) {
				t.Errorf("terminal status %s must not transition to %s", from, to)
			}
		}
	}
}

func TestFundedEscrowUnreachableFromTerminal(t *testing.T) {
	// Walk every path in the graph and record which statuses are reachable
	// from each terminal status.
	reachable := func(start BookingStatus) map[BookingStatus]bool {
		seen := map[BookingStatus]bool{}
		queue := []BookingStatus{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range allStatuses {
				if CanTransition(cur, next) && !seen[next] {
					seen[next] = true
					queue = append(queue, next)
				}
			}
		}
		return seen
	}

	for _, terminal := range []BookingStatus{StatusCompleted, StatusCancelled} {
		if reachable(terminal)[StatusFundedEscrow] {
			t.Errorf("funded_escrow must be unreachable from %s", terminal)
		}
	}
}

func TestCanTransition_Edges(t *testing.T) {
	tests := []struct {
		from BookingStatus
		to   BookingStatus
		want bool
	}{
		{StatusPending, StatusPending, true},
		{StatusPending, StatusFundedEscrow, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusFundedEscrow, StatusCompleted, true},
		{StatusFundedEscrow, StatusCancelled, true},
		{StatusFundedEscrow, StatusPending, false},
		{StatusFundedEscrow, StatusFundedEscrow, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestEngagementKind_MaxDuration(t *testing.T) {
	tests := []struct {
		kind EngagementKind
		want int
	}{
		{KindShortUnit, 24},
		{KindDayUnit, 7},
		{KindWeekUnit, 4},
		{EngagementKind("hourly"), 0},
	}
	for _, tt := range tests {
		if got := tt.kind.MaxDuration(); got != tt.want {
			t.Errorf("%s.MaxDuration() = %d, want %d", tt.kind, got, tt.want)
		}
	}
	if EngagementKind("monthly").Valid() {
		t.Error("unknown kind must not be valid")
	}
}

func TestBooking_IsParty(t *testing.T) {
	b := &Booking{InitiatorPartyID: "client-1", CounterpartyID: "companion-1"}

	if !b.IsParty("client-1") || !b.IsParty("companion-1") {
		t.Error("both parties should be recognized")
	}
	if b.IsParty("stranger") || b.IsParty("") {
		t.Error("non-parties and empty ids must not be recognized")
	}
}
