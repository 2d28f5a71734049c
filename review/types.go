package review

import (
	"context"
	"errors"

	"github.com/chwlink/commodity-engine/admission"
)

// Action is a reviewer's decision on a pending request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Status maps the action to the status it produces.
func (a Action) Status() (admission.Status, error) {
	switch a {
	case ActionApprove:
		return admission.StatusApproved, nil
	case ActionReject:
		return admission.StatusRejected, nil
	}
	return "", ErrInvalidAction
}

// RequestDetail is a request joined with the names needed for display.
// CHAID is the supervising CHA of the owning CHW, if any.
type RequestDetail struct {
	admission.Request
	CHWName       string
	CHAID         *int64
	CHAName       string
	CommodityName string
}

// Filter narrows a request listing. Zero values mean "any".
type Filter struct {
	Status      admission.Status
	CHWID       int64
	CHAID       int64
	CommodityID int64
	Limit       int
}

// DefaultLimit is the listing size when Filter.Limit is unset.
const DefaultLimit = 50

// Store reads requests with their context and applies status changes.
type Store interface {
	GetRequestDetail(ctx context.Context, id int64) (*RequestDetail, error)
	ListRequests(ctx context.Context, f Filter) ([]RequestDetail, error)

	// UpdateRequestStatus moves id from `from` to `to` only if it is still
	// in `from`. It reports whether a row changed.
	UpdateRequestStatus(ctx context.Context, id int64, from, to admission.Status) (bool, error)
}

var (
	ErrInvalidAction   = errors.New("invalid action")
	ErrRequestNotFound = errors.New("request not found")
	ErrOutOfScope      = errors.New("request belongs to a CHW outside this CHA's supervision")
	ErrNotPending      = errors.New("request is not pending")
)
