/*
Package review moves admitted requests out of Pending.

PURPOSE:
  A CHA approves or rejects the Pending requests of the CHWs it supervises.
  Admission only ever creates Pending requests; this package owns every
  later status change.

STATE MACHINE:
  Pending ──approve──▶ Approved
     │
     └────reject────▶ Rejected

  Approved and Rejected are final. Both still count toward the monthly
  quota, so review never changes what admission will allow.

CONCURRENCY:
  The status update is conditional on the request still being Pending.
  When two reviewers race, one update applies and the other gets
  ErrNotPending.

SEE ALSO:
  - admission/types.go: Status and its transitions
  - store/sqlite/sqlite.go: Store implementation
*/
package review

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chwlink/commodity-engine/admission"
)

// Service applies CHA decisions to requests.
type Service struct {
	Store  Store
	Logger *zap.Logger
}

// NewService creates a review service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, Logger: logger}
}

// Decide applies action to the request on behalf of chaID and returns the
// updated request.
func (s *Service) Decide(ctx context.Context, chaID, requestID int64, action Action) (*RequestDetail, error) {
	next, err := action.Status()
	if err != nil {
		return nil, err
	}

	detail, err := s.Store.GetRequestDetail(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request %d: %w", requestID, err)
	}
	if detail == nil {
		return nil, ErrRequestNotFound
	}
	if detail.CHAID == nil || *detail.CHAID != chaID {
		return nil, ErrOutOfScope
	}
	if !detail.Status.CanTransitionTo(next) {
		return nil, ErrNotPending
	}

	updated, err := s.Store.UpdateRequestStatus(ctx, requestID, detail.Status, next)
	if err != nil {
		return nil, fmt.Errorf("failed to update request %d: %w", requestID, err)
	}
	if !updated {
		// Another reviewer got there first.
		return nil, ErrNotPending
	}

	s.Logger.Info("request reviewed",
		zap.Int64("request_id", requestID),
		zap.Int64("cha_id", chaID),
		zap.String("status", string(next)),
	)

	detail.Status = next
	return detail, nil
}

// PendingFor lists the Pending requests of the CHWs supervised by chaID,
// newest first.
func (s *Service) PendingFor(ctx context.Context, chaID int64) ([]RequestDetail, error) {
	return s.Store.ListRequests(ctx, Filter{
		Status: admission.StatusPending,
		CHAID:  chaID,
		Limit:  DefaultLimit,
	})
}

// List returns requests matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]RequestDetail, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q", f.Status)
	}
	return s.Store.ListRequests(ctx, f)
}
