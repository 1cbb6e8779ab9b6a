package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_AllPairs(t *testing.T) {
	legal := map[edge]bool{
		{StatusPending, StatusAccepted}:     true,
		{StatusPending, StatusCancelled}:    true,
		{StatusAccepted, StatusInProgress}:  true,
		{StatusAccepted, StatusCancelled}:   true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusInProgress, StatusCancelled}: true,
	}

	for _, from := range Statuses() {
		for _, to := range Statuses() {
			assert.Equal(t, legal[edge{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition(StatusPending, Status("archived")))
	assert.False(t, CanTransition(Status(""), StatusAccepted))
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	for _, s := range Statuses() {
		if s.Terminal() {
			assert.Empty(t, NextStatuses(s), "%s", s)
		} else {
			assert.NotEmpty(t, NextStatuses(s), "%s", s)
		}
	}
}

func TestNextStatuses(t *testing.T) {
	assert.Equal(t, []Status{StatusAccepted, StatusCancelled}, NextStatuses(StatusPending))
	assert.Equal(t, []Status{StatusInProgress, StatusCancelled}, NextStatuses(StatusAccepted))
	assert.Equal(t, []Status{StatusCompleted, StatusCancelled}, NextStatuses(StatusInProgress))
}

func TestPermits(t *testing.T) {
	req := &ServiceRequest{CustomerID: "c1", WorkerID: "w1"}
	worker := Actor{UserID: "w1", Role: RoleWorker}
	customer := Actor{UserID: "c1", Role: RoleCustomer}
	otherWorker := Actor{UserID: "w2", Role: RoleWorker}
	admin := Actor{UserID: "a1", Role: RoleAdmin}

	tests := []struct {
		name  string
		actor Actor
		from  Status
		to    Status
		want  bool
	}{
		{"worker accepts", worker, StatusPending, StatusAccepted, true},
		{"customer cannot accept", customer, StatusPending, StatusAccepted, false},
		{"customer cannot cancel pending", customer, StatusPending, StatusCancelled, false},
		{"worker cancels pending", worker, StatusPending, StatusCancelled, true},
		{"customer starts", customer, StatusAccepted, StatusInProgress, true},
		{"worker starts", worker, StatusAccepted, StatusInProgress, true},
		{"customer completes", customer, StatusInProgress, StatusCompleted, true},
		{"worker cancels in progress", worker, StatusInProgress, StatusCancelled, true},
		{"customer cannot cancel in progress", customer, StatusInProgress, StatusCancelled, false},
		{"unrelated worker", otherWorker, StatusPending, StatusAccepted, false},
		{"admin is not a party", admin, StatusInProgress, StatusCompleted, false},
		{"worker id with customer role", Actor{UserID: "w1", Role: RoleCustomer}, StatusPending, StatusAccepted, false},
		{"missing edge", worker, StatusPending, StatusCompleted, false},
		{"anonymous", Actor{}, StatusAccepted, StatusInProgress, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Permits(req, tt.actor, tt.from, tt.to))
		})
	}
}

func TestTermsValidate(t *testing.T) {
	ok := Terms{ListingType: ListingOnDemand, Price: 500}
	assert.NoError(t, ok.Validate())

	bad := []Terms{
		{ListingType: "weekly", Price: 500},
		{ListingType: ListingProject, Price: 0},
		{ListingType: ListingProject, Price: -1},
	}
	for _, terms := range bad {
		assert.ErrorIs(t, terms.Validate(), ErrInvalidInput)
	}
}
