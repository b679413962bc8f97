package memory

import (
	"context"

	"github.com/google/uuid"

	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
)

// fundRepository implements fund.Repository over a transaction's working set
type fundRepository tx

var _ fund.Repository = (*fundRepository)(nil)

// Create stores a new fund and binds its share mint to the fund's mint authority.
func (r *fundRepository) Create(_ context.Context, f *fund.Fund) error {
	t := (*tx)(r)
	if _, ok := t.s.funds[f.ID]; ok {
		return errors.Wrapf(errors.ErrAlreadyExists, "fund %s", f.ID)
	}
	if _, ok := t.funds[f.ID]; ok {
		return errors.Wrapf(errors.ErrAlreadyExists, "fund %s", f.ID)
	}
	if _, ok := t.authorityOf(f.Accounts.ShareMint); ok {
		return errors.Wrapf(errors.ErrAlreadyExists, "share mint %s is bound to another fund", f.Accounts.ShareMint)
	}

	t.funds[f.ID] = f.Clone()
	t.created = append(t.created, f.ID)
	t.authorities[f.Accounts.ShareMint] = f.Accounts.MintAuthority.Address
	return nil
}

// GetByID returns a copy the caller may mutate and pass back to Update.
func (r *fundRepository) GetByID(_ context.Context, id uuid.UUID) (*fund.Fund, error) {
	f, err := (*tx)(r).working(id)
	if err != nil {
		return nil, err
	}
	return f.Clone(), nil
}

// Update replaces the fund's working copy.
func (r *fundRepository) Update(_ context.Context, f *fund.Fund) error {
	t := (*tx)(r)
	if _, err := t.working(f.ID); err != nil {
		return err
	}
	t.funds[f.ID] = f.Clone()
	return nil
}

// AppendRedemption adds req to the end of the fund's queue.
func (r *fundRepository) AppendRedemption(_ context.Context, fundID uuid.UUID, req *fund.RedemptionRequest) error {
	w, err := (*tx)(r).working(fundID)
	if err != nil {
		return err
	}
	if req.ID != uint64(w.Queue.Len())+1 {
		return errors.Wrapf(errors.ErrInvalidInput, "request id %d does not follow %d", req.ID, w.Queue.Len())
	}
	if w.Queue.IsFull() {
		return errors.ErrRedemptionQueueFull
	}
	w.Queue.Requests = append(w.Queue.Requests, *req)
	return nil
}

// UpdateRedemption overwrites a stored request.
func (r *fundRepository) UpdateRedemption(_ context.Context, fundID uuid.UUID, req *fund.RedemptionRequest) error {
	w, err := (*tx)(r).working(fundID)
	if err != nil {
		return err
	}
	stored, err := w.Queue.Get(req.ID)
	if err != nil {
		return err
	}
	*stored = *req
	return nil
}
