package fund

import (
	"time"

	"navfund/pkg/errors"
)

// MaxRedemptionRequests is the redemption queue capacity.
const MaxRedemptionRequests = 100

// RedemptionStatus is the lifecycle state of a redemption request
type RedemptionStatus string

const (
	RedemptionPending  RedemptionStatus = "pending"
	RedemptionApproved RedemptionStatus = "approved"
	RedemptionSettled  RedemptionStatus = "settled"
)

// Valid checks if the status is known
func (s RedemptionStatus) Valid() bool {
	switch s {
	case RedemptionPending, RedemptionApproved, RedemptionSettled:
		return true
	}
	return false
}

// String returns string representation
func (s RedemptionStatus) String() string {
	return string(s)
}

// Next returns the status that follows s, false for Settled.
func (s RedemptionStatus) Next() (RedemptionStatus, bool) {
	switch s {
	case RedemptionPending:
		return RedemptionApproved, true
	case RedemptionApproved:
		return RedemptionSettled, true
	}
	return "", false
}

// CanTransitionTo reports whether s advances to next in exactly one step.
func (s RedemptionStatus) CanTransitionTo(next RedemptionStatus) bool {
	want, ok := s.Next()
	return ok && want == next
}

// RedemptionRequest is a queued intent to convert shares back into the payment asset.
type RedemptionRequest struct {
	ID          uint64
	Requester   Identity
	TokenAmount uint64
	RequestedAt time.Time
	Status      RedemptionStatus
	UpdatedAt   time.Time

	// Set on settlement
	PayoutAmount uint64
	FeeAmount    uint64
}

// Advance moves the request to next, failing on anything but a single forward step.
func (r *RedemptionRequest) Advance(next RedemptionStatus, at time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return errors.Wrapf(errors.ErrInvalidStatusTransition, "request %d: %s -> %s", r.ID, r.Status, next)
	}
	r.Status = next
	r.UpdatedAt = at
	return nil
}

// RedemptionQueue is the bounded FIFO of redemption requests. Entries are never
// removed, so a request's id is its 1-indexed position.
type RedemptionQueue struct {
	Requests []RedemptionRequest
}

// NewRedemptionQueue returns an empty queue with room for MaxRedemptionRequests.
func NewRedemptionQueue() RedemptionQueue {
	return RedemptionQueue{Requests: make([]RedemptionRequest, 0, MaxRedemptionRequests)}
}

// Len returns the number of requests ever enqueued.
func (q *RedemptionQueue) Len() int {
	return len(q.Requests)
}

// IsFull reports whether another request would exceed capacity.
func (q *RedemptionQueue) IsFull() bool {
	return len(q.Requests) >= MaxRedemptionRequests
}

// Enqueue appends a pending request and returns it. Its id is the queue length after the append.
func (q *RedemptionQueue) Enqueue(requester Identity, tokenAmount uint64, at time.Time) (RedemptionRequest, error) {
	if tokenAmount == 0 {
		return RedemptionRequest{}, errors.ErrInvalidAmount
	}
	if q.IsFull() {
		return RedemptionRequest{}, errors.ErrRedemptionQueueFull
	}
	req := RedemptionRequest{
		Requester:   requester,
		TokenAmount: tokenAmount,
		RequestedAt: at,
		Status:      RedemptionPending,
		UpdatedAt:   at,
	}
	q.Requests = append(q.Requests, req)
	req.ID = uint64(len(q.Requests))
	q.Requests[len(q.Requests)-1].ID = req.ID
	return req, nil
}

// Get returns a pointer to the request with id so it can be advanced in place.
func (q *RedemptionQueue) Get(id uint64) (*RedemptionRequest, error) {
	if id == 0 || id > uint64(len(q.Requests)) {
		return nil, errors.Wrapf(errors.ErrRedemptionNotFound, "id %d", id)
	}
	return &q.Requests[id-1], nil
}

// InStatus returns copies of requests in status, in settlement priority order.
func (q *RedemptionQueue) InStatus(status RedemptionStatus) []RedemptionRequest {
	var out []RedemptionRequest
	for _, r := range q.Requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// Depth counts requests per status.
func (q *RedemptionQueue) Depth() map[RedemptionStatus]int {
	depth := map[RedemptionStatus]int{
		RedemptionPending:  0,
		RedemptionApproved: 0,
		RedemptionSettled:  0,
	}
	for _, r := range q.Requests {
		depth[r.Status]++
	}
	return depth
}

// Clone returns a queue that shares no memory with q.
func (q RedemptionQueue) Clone() RedemptionQueue {
	out := make([]RedemptionRequest, len(q.Requests), max(len(q.Requests), MaxRedemptionRequests))
	copy(out, q.Requests)
	return RedemptionQueue{Requests: out}
}
