package model

import "testing"

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusCancelled, StatusCheckedOut, StatusNoShow}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	active := []Status{StatusPending, StatusConfirmed, StatusCheckedIn}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestStatusBlocksAvailability(t *testing.T) {
	// A checked-out booking still occupies its historical window; only
	// cancellations and no-shows release the slot.
	blocking := []Status{StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut}
	for _, s := range blocking {
		if !s.BlocksAvailability() {
			t.Errorf("expected %s to block availability", s)
		}
	}
	for _, s := range []Status{StatusCancelled, StatusNoShow} {
		if s.BlocksAvailability() {
			t.Errorf("expected %s not to block availability", s)
		}
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCheckedIn, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusCheckedIn, StatusCheckedOut, true},
		{StatusCheckedIn, StatusCancelled, true},
		{StatusConfirmed, StatusCheckedOut, false},
		{StatusCheckedOut, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusNoShow, StatusCheckedIn, false},
		{StatusCheckedIn, StatusNoShow, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		start1, end1, start2, end2 string
		want                       bool
	}{
		{"identical windows", "09:00", "10:00", "09:00", "10:00", true},
		{"partial overlap", "09:00", "10:00", "09:30", "10:30", true},
		{"contained", "09:00", "12:00", "10:00", "11:00", true},
		{"touching end to start", "09:00", "10:00", "10:00", "11:00", false},
		{"touching start to end", "10:00", "11:00", "09:00", "10:00", false},
		{"disjoint", "09:00", "10:00", "14:00", "15:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.start1, tt.end1, tt.start2, tt.end2); got != tt.want {
				t.Errorf("Overlaps(%s-%s, %s-%s) = %v, want %v",
					tt.start1, tt.end1, tt.start2, tt.end2, got, tt.want)
			}
		})
	}
}

func TestValidTimeOfDay(t *testing.T) {
	valid := []string{"00:00", "09:30", "23:59"}
	for _, s := range valid {
		if !ValidTimeOfDay(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	invalid := []string{"24:00", "9:30", "09:60", "0930", "", "09:30:00"}
	for _, s := range invalid {
		if ValidTimeOfDay(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestMinutesOfDay(t *testing.T) {
	if got := MinutesOfDay("09:30"); got != 570 {
		t.Errorf("MinutesOfDay(09:30) = %d, want 570", got)
	}
	if got := MinutesOfDay("00:00"); got != 0 {
		t.Errorf("MinutesOfDay(00:00) = %d, want 0", got)
	}
	if got := MinutesOfDay("23:59"); got != 1439 {
		t.Errorf("MinutesOfDay(23:59) = %d, want 1439", got)
	}
}

func TestCallerRoles(t *testing.T) {
	admin := Caller{TenantID: "t1", UserID: "u1", Roles: []string{"member", RoleAdmin}}
	if !admin.IsAdmin() {
		t.Error("expected caller with admin role to be admin")
	}

	member := Caller{TenantID: "t1", UserID: "u2", Roles: []string{"member"}}
	if member.IsAdmin() {
		t.Error("expected member caller not to be admin")
	}
}
