package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homefix/internal/modules/catalog"
	"homefix/internal/types"
)

// TestCanTransition verifies the transition table without any storage.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// direct path
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusQuoted, true},
		{StatusQuoted, StatusConfirmed, true},
		{StatusQuoted, StatusDeclined, true},
		{StatusQuoted, StatusApproved, true},
		{StatusApproved, StatusCompleted, true},
		{StatusConfirmed, StatusCompleted, true},
		// broadcast path
		{StatusRequested, StatusOffersSent, true},
		{StatusOffersSent, StatusCustomerSelected, true},
		{StatusCustomerSelected, StatusApproved, true},
		{StatusCustomerSelected, StatusRejected, true},
		// cancels
		{StatusPending, StatusCancelled, true},
		{StatusRequested, StatusCancelled, true},
		{StatusOffersSent, StatusCancelled, true},
		{StatusQuoted, StatusCancelled, true},
		{StatusCustomerSelected, StatusCancelled, true},
		// no cancel once the work is locked in
		{StatusApproved, StatusCancelled, false},
		{StatusConfirmed, StatusCancelled, false},
		// terminal states
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusRejected, StatusApproved, false},
		{StatusDeclined, StatusConfirmed, false},
		// skipping states
		{StatusPending, StatusCompleted, false},
		{StatusRequested, StatusCustomerSelected, false},
		{StatusOffersSent, StatusApproved, false},
		{StatusPending, StatusConfirmed, false},
		// self loops
		{StatusPending, StatusPending, false},
		{StatusOffersSent, StatusOffersSent, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusDeclined, StatusCompleted, StatusCancelled} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []Status{StatusPending, StatusRequested, StatusOffersSent, StatusQuoted, StatusCustomerSelected, StatusApproved, StatusConfirmed} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"pending":             StatusPending,
		" offers_sent ":       StatusOffersSent,
		"Pending":             StatusPending,
		"Approved":            StatusApproved,
		"accepted":            StatusApproved,
		"admin_approved":      StatusApproved,
		"technician_assigned": StatusApproved,
		"Rejected":            StatusRejected,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStatus("in_progress")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	_, err = ParseStatus("none")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestParseSchedule(t *testing.T) {
	got, err := parseSchedule("2025-03-10", "10:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC), got)

	got, err = parseSchedule(" 2025-12-01 ", "08:15:45")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 1, 8, 15, 45, 0, time.UTC), got)

	for _, in := range [][2]string{
		{"10/03/2025", "10:30"},
		{"2025-02-30", "10:30"},
		{"2025-03-10", "10.30"},
		{"2025-03-10", "25:00"},
		{"", "10:30"},
	} {
		_, err := parseSchedule(in[0], in[1])
		assert.ErrorIs(t, err, types.ErrInvalidInput, "%s %s", in[0], in[1])
	}
}

func TestConfirmAlias(t *testing.T) {
	for _, v := range []string{"", "confirmed", "Confirmed", "approved", "Approved", "accepted", "admin_approved", "technician_assigned"} {
		assert.True(t, confirmAlias(v), v)
	}
	for _, v := range []string{"rejected", "completed", "pending", "bogus"} {
		assert.False(t, confirmAlias(v), v)
	}
}

func TestParseDecision(t *testing.T) {
	for _, v := range []string{"grant", "Approve", " accept "} {
		d, err := ParseDecision(v)
		require.NoError(t, err)
		assert.Equal(t, DecisionGrant, d)
	}
	for _, v := range []string{"deny", "REJECT", "decline"} {
		d, err := ParseDecision(v)
		require.NoError(t, err)
		assert.Equal(t, DecisionDeny, d)
	}
	_, err := ParseDecision("maybe")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestParseQuoteResponse(t *testing.T) {
	ok, err := ParseQuoteResponse("accept")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ParseQuoteResponse("Declined")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ParseQuoteResponse("")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestCheckInvariants(t *testing.T) {
	tech := types.ID("tech-1")
	price := types.Money{Amount: 100, Currency: "NPR"}
	cases := []struct {
		name string
		b    Booking
		ok   bool
	}{
		{"pending without technician", Booking{Status: StatusPending}, true},
		{"pending reserved for technician", Booking{Status: StatusPending, TechnicianID: &tech}, true},
		{"requested with technician", Booking{Status: StatusRequested, TechnicianID: &tech}, false},
		{"offers sent with technician", Booking{Status: StatusOffersSent, TechnicianID: &tech}, false},
		{"quoted without technician", Booking{Status: StatusQuoted}, false},
		{"selected without technician", Booking{Status: StatusCustomerSelected}, false},
		{"confirmed with technician", Booking{Status: StatusConfirmed, TechnicianID: &tech}, true},
		{"completed without technician", Booking{Status: StatusCompleted}, false},
		{"approved without technician", Booking{Status: StatusApproved}, true},
		{"proposed price without technician", Booking{Status: StatusPending, ProposedPrice: &price}, false},
		{"status outside the set", Booking{Status: "in_progress"}, false},
		{"none is not storable", Booking{Status: StatusNone}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.b.checkInvariants()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	tech := types.ID("tech-1")
	price := types.Money{Amount: 100, Currency: "NPR"}
	b := &Booking{ID: "b1", TechnicianID: &tech, Price: &price}

	c := b.Clone()
	*c.TechnicianID = "tech-2"
	c.Price.Amount = 200

	assert.Equal(t, types.ID("tech-1"), *b.TechnicianID)
	assert.Equal(t, int64(100), b.Price.Amount)
}

func TestVisible(t *testing.T) {
	tech := types.ID("tech-1")
	mine := &Booking{CustomerID: "cust-1", Status: StatusApproved, TechnicianID: &tech}
	open := &Booking{CustomerID: "cust-1", Status: StatusRequested}

	assert.True(t, Visible(mine, types.Actor{ID: "admin", Role: types.RoleAdmin}))
	assert.True(t, Visible(mine, types.Actor{ID: "cust-1", Role: types.RoleCustomer}))
	assert.False(t, Visible(mine, types.Actor{ID: "cust-2", Role: types.RoleCustomer}))
	assert.True(t, Visible(mine, types.Actor{ID: "tech-1", Role: types.RoleTechnician}))
	assert.False(t, Visible(mine, types.Actor{ID: "tech-2", Role: types.RoleTechnician}))
	assert.True(t, Visible(open, types.Actor{ID: "tech-2", Role: types.RoleTechnician}))
	assert.False(t, Visible(open, types.Actor{ID: "x"}))
}

func TestSkillMatch(t *testing.T) {
	candidates := []catalog.Technician{
		{ID: "t-elec", Skills: "Electrical, wiring"},
		{ID: "t-plumb", Skills: "plumbing"},
		{ID: "t-ac", Skills: "AC repair"},
	}
	var sel SkillMatch

	got := sel.SelectTechnician(catalog.Service{Category: "Plumbing", Name: "Leak fix"}, candidates)
	require.NotNil(t, got)
	assert.Equal(t, types.ID("t-plumb"), got.ID)

	got = sel.SelectTechnician(catalog.Service{Category: "Cooling", Name: "AC repair"}, candidates)
	require.NotNil(t, got)
	assert.Equal(t, types.ID("t-ac"), got.ID, "falls back to the service name")

	got = sel.SelectTechnician(catalog.Service{Category: "Gardening", Name: "Lawn"}, candidates)
	require.NotNil(t, got)
	assert.Equal(t, types.ID("t-elec"), got.ID, "falls back to the first candidate")

	assert.Nil(t, sel.SelectTechnician(catalog.Service{Category: "Plumbing"}, nil))
}

func TestErrorsWrapTaxonomy(t *testing.T) {
	assert.True(t, errors.Is(ErrNotFound, types.ErrNotFound))
	assert.True(t, errors.Is(ErrConflict, types.ErrConflict))
	assert.True(t, errors.Is(invalidTransition(StatusCompleted, StatusCancelled), types.ErrInvalidTransition))
}
