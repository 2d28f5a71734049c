/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request bodies carry go-playground/validator tags and are checked by
  decodeAndValidate before any domain call. Quantity is the exception: it
  is decoded as a decimal and judged by the admission engine, so that
  1.5, 100 and "49" produce the same invalid_quantity denial as any other
  rejected quantity.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chwlink/commodity-engine/accounts"
	"github.com/chwlink/commodity-engine/admission"
	"github.com/chwlink/commodity-engine/review"
	"github.com/chwlink/commodity-engine/store/sqlite"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

// CHUDTO represents a community health unit.
type CHUDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	County string `json:"county"`
}

// CommodityDTO represents a requestable commodity.
type CommodityDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitRequestRequest is the body of POST /api/requests.
type SubmitRequestRequest struct {
	CHWID       int64           `json:"chw_id" validate:"required,gt=0"`
	CommodityID int64           `json:"commodity_id" validate:"required,gt=0"`
	Quantity    Quantity `json:"quantity"`
}

func (r SubmitRequestRequest) input() admission.Input {
	return admission.Input{CHWID: r.CHWID, CommodityID: r.CommodityID, Quantity: r.Quantity.Value}
}

// Quantity accepts only a bare JSON number. A string, even a numeric one,
// decodes to zero so the engine denies it as invalid_quantity.
type Quantity struct {
	Value decimal.Decimal
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		q.Value = decimal.Zero
		return nil
	}
	return q.Value.UnmarshalJSON(data)
}

// RequestDTO represents a commodity request.
type RequestDTO struct {
	ID            int64  `json:"id"`
	CHWID         int64  `json:"chw_id"`
	CommodityID   int64  `json:"commodity_id"`
	Quantity      int    `json:"quantity"`
	RequestDate   string `json:"request_date"`
	Status        string `json:"status"`
	CHWName       string `json:"chw_name,omitempty"`
	CHAID         *int64 `json:"cha_id,omitempty"`
	CHAName       string `json:"cha_name,omitempty"`
	CommodityName string `json:"commodity_name,omitempty"`
}

// VerdictDTO is the result of a dry-run check.
type VerdictDTO struct {
	Allowed         bool   `json:"allowed"`
	CHWID           int64  `json:"chw_id"`
	CommodityID     int64  `json:"commodity_id"`
	Quantity        int    `json:"quantity"`
	Day             string `json:"day"`
	MonthToDate     int    `json:"month_to_date"`
	MonthTotalAfter int    `json:"month_total_after"`
	Remaining       int    `json:"remaining"`
	Limit           int    `json:"limit"`
}

// MonthlyLimitDetails accompanies a monthly_limit_exceeded denial.
type MonthlyLimitDetails struct {
	Total     int `json:"total"`
	Requested int `json:"requested"`
	Limit     int `json:"limit"`
}

// ReviewRequest is the body of POST /api/requests/{id}/approve.
type ReviewRequest struct {
	Action string `json:"action"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// LoginRequest is the body of both login endpoints.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignupRequest is the body of POST /api/chw/signup.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	CHUID    int64  `json:"chu_id" validate:"required,gt=0"`
}

// CHWApprovalRequest is the body of POST /api/chw/{id}/approve.
type CHWApprovalRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

// CHWDTO represents a CHW without credentials.
type CHWDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	CHUID    int64  `json:"chu_id"`
	CHAID    *int64 `json:"cha_id"`
	CHAName  string `json:"cha_name,omitempty"`
	Approved bool   `json:"approved"`
	Rejected bool   `json:"rejected"`
}

// CHADTO represents a CHA without credentials.
type CHADTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	CHUID *int64 `json:"chu_id"`
}

// CHALoginResponse is returned by POST /api/cha/login.
type CHALoginResponse struct {
	Token string `json:"token"`
	CHA   CHADTO `json:"cha"`
}

// CHWLoginResponse is returned by POST /api/chw/login.
type CHWLoginResponse struct {
	Token string `json:"token"`
	CHW   CHWDTO `json:"chw"`
}

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRequestDTO(r admission.Request) RequestDTO {
	return RequestDTO{
		ID:          r.ID,
		CHWID:       r.CHWID,
		CommodityID: r.CommodityID,
		Quantity:    r.Quantity,
		RequestDate: r.RequestDate.Format(time.RFC3339),
		Status:      string(r.Status),
	}
}

func toRequestDetailDTO(d review.RequestDetail) RequestDTO {
	dto := toRequestDTO(d.Request)
	dto.CHWName = d.CHWName
	dto.CHAID = d.CHAID
	dto.CHAName = d.CHAName
	dto.CommodityName = d.CommodityName
	return dto
}

func toRequestDetailDTOs(details []review.RequestDetail) []RequestDTO {
	dtos := make([]RequestDTO, len(details))
	for i, d := range details {
		dtos[i] = toRequestDetailDTO(d)
	}
	return dtos
}

func toVerdictDTO(v admission.Verdict) VerdictDTO {
	return VerdictDTO{
		Allowed:         true,
		CHWID:           v.CHWID,
		CommodityID:     v.CommodityID,
		Quantity:        v.Quantity,
		Day:             v.Day.String(),
		MonthToDate:     v.MonthToDate,
		MonthTotalAfter: v.MonthTotalAfter(),
		Remaining:       v.Remaining(),
		Limit:           admission.MonthlyLimit,
	}
}

func toCHWDTO(c accounts.CHW) CHWDTO {
	return CHWDTO{
		ID:       c.ID,
		Name:     c.Name,
		Email:    c.Email,
		CHUID:    c.CHUID,
		CHAID:    c.CHAID,
		Approved: c.Approved,
		Rejected: c.Rejected,
	}
}

func toCHWSummaryDTOs(chws []sqlite.CHWSummary) []CHWDTO {
	dtos := make([]CHWDTO, len(chws))
	for i, c := range chws {
		dtos[i] = CHWDTO{
			ID:       c.ID,
			Name:     c.Name,
			Email:    c.Email,
			CHUID:    c.CHUID,
			CHAID:    c.CHAID,
			CHAName:  c.CHAName,
			Approved: c.Approved,
			Rejected: c.Rejected,
		}
	}
	return dtos
}
