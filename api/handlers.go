/*
handlers.go - HTTP API handlers for the commodity request system

PURPOSE:
  Exposes admission, review and accounts via REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Reference data:
    GET    /api/chus                     List community health units
    GET    /api/commodities              List commodities

  Requests:
    GET    /api/requests                 Recent requests (filters: status,
                                         chw_id, cha_id, commodity_id, limit)
    POST   /api/requests                 Submit a request (admission)
    POST   /api/requests/check           Dry-run admission
    POST   /api/requests/{id}/approve    Approve or reject {action} (CHA)
    POST   /api/requests/{id}/reject     Reject (CHA)

  CHA:
    POST   /api/cha/login                Login, returns token
    GET    /api/cha/{cha_id}/requests    Pending queue (CHA, own id only)

  CHW:
    POST   /api/chw/signup               Register (unapproved)
    POST   /api/chw/login                Login, approved CHWs only
    POST   /api/chw/{id}/approve         Admin approval {approve}
    GET    /api/chw/list                 All CHWs, newest first
    GET    /api/chw/approved             Approved CHWs by name
    GET    /api/chws                     CHWs with their CHA

REQUEST FLOW:
  1. Parse and validate the HTTP request
  2. Call domain logic (admission engine, review or accounts service)
  3. Serialize response
  4. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as ErrorResponse with an HTTP status:
  - 400: Validation errors and admission denials (with code)
  - 401: Bad credentials or token
  - 403: Not approved, or outside the caller's scope
  - 404: Resource not found
  - 409: Conflict (email taken, request already decided)
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chwlink/commodity-engine/accounts"
	"github.com/chwlink/commodity-engine/admission"
	"github.com/chwlink/commodity-engine/auth"
	"github.com/chwlink/commodity-engine/review"
	"github.com/chwlink/commodity-engine/store/sqlite"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Engine   *admission.Engine
	Review   *review.Service
	Accounts *accounts.Service
	Tokens   *auth.Issuer
	Logger   *zap.Logger
}

// NewHandler creates a handler with services built on store.
func NewHandler(store *sqlite.Store, tokens *auth.Issuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:    store,
		Engine:   admission.NewEngine(store, logger.Named("admission")),
		Review:   review.NewService(store, logger.Named("review")),
		Accounts: accounts.NewService(store, tokens, logger.Named("accounts")),
		Tokens:   tokens,
		Logger:   logger,
	}
}

// =============================================================================
// REFERENCE DATA HANDLERS
// =============================================================================

// ListCHUs returns all community health units.
func (h *Handler) ListCHUs(w http.ResponseWriter, r *http.Request) {
	chus, err := h.Store.ListCHUs(r.Context())
	if err != nil {
		h.internalError(w, "Failed to list CHUs", err)
		return
	}

	dtos := make([]CHUDTO, len(chus))
	for i, c := range chus {
		dtos[i] = CHUDTO{ID: c.ID, Name: c.Name, County: c.County}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListCommodities returns all commodities.
func (h *Handler) ListCommodities(w http.ResponseWriter, r *http.Request) {
	commodities, err := h.Store.ListCommodities(r.Context())
	if err != nil {
		h.internalError(w, "Failed to list commodities", err)
		return
	}

	dtos := make([]CommodityDTO, len(commodities))
	for i, c := range commodities {
		dtos[i] = CommodityDTO{ID: c.ID, Name: c.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// ListRequests returns recent requests with names.
// GET /api/requests?status=Pending&chw_id=1&cha_id=2&commodity_id=3&limit=50
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := review.Filter{Status: admission.Status(q.Get("status"))}

	var err error
	if f.CHWID, err = queryInt64(q.Get("chw_id")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chw_id", err)
		return
	}
	if f.CHAID, err = queryInt64(q.Get("cha_id")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cha_id", err)
		return
	}
	if f.CommodityID, err = queryInt64(q.Get("commodity_id")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid commodity_id", err)
		return
	}
	limit, err := queryInt64(q.Get("limit"))
	if err != nil || limit > 500 {
		writeError(w, http.StatusBadRequest, "Invalid limit (1-500)", err)
		return
	}
	f.Limit = int(limit)

	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid status: %s", f.Status), nil)
		return
	}

	details, err := h.Review.List(r.Context(), f)
	if err != nil {
		h.internalError(w, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDetailDTOs(details))
}

// SubmitRequest admits a commodity request.
// POST /api/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.Engine.Admit(r.Context(), req.input())
	if err != nil {
		h.admissionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

// CheckRequest evaluates a request without storing it.
// POST /api/requests/check
func (h *Handler) CheckRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	verdict, err := h.Engine.Check(r.Context(), req.input())
	if err != nil {
		h.admissionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toVerdictDTO(verdict))
}

// ApproveRequest applies the body's action, approve by default.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	action := review.ActionApprove
	if req.Action != "" {
		action = review.Action(req.Action)
	}
	h.decide(w, r, action)
}

// RejectRequest rejects a pending request.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, review.ActionReject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, action review.Action) {
	requestID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request id", err)
		return
	}
	chaID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing caller", nil)
		return
	}

	detail, err := h.Review.Decide(r.Context(), chaID, requestID, action)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toRequestDetailDTO(*detail))
	case errors.Is(err, review.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "Invalid action (approve or reject)", nil)
	case errors.Is(err, review.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "Request not found", nil)
	case errors.Is(err, review.ErrOutOfScope):
		writeError(w, http.StatusForbidden, "Request is outside your supervision", nil)
	case errors.Is(err, review.ErrNotPending):
		writeError(w, http.StatusConflict, "Request has already been decided", nil)
	default:
		h.internalError(w, "Failed to update request", err)
	}
}

// =============================================================================
// CHA HANDLERS
// =============================================================================

// LoginCHA authenticates a CHA.
// POST /api/cha/login
func (h *Handler) LoginCHA(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.Accounts.LoginCHA(r.Context(), req.Email, req.Password)
	if err != nil {
		h.accountError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CHALoginResponse{
		Token: session.Token,
		CHA: CHADTO{
			ID:    session.CHA.ID,
			Name:  session.CHA.Name,
			Email: session.CHA.Email,
			CHUID: session.CHA.CHUID,
		},
	})
}

// ListCHARequests returns the pending queue of the calling CHA.
// GET /api/cha/{cha_id}/requests
func (h *Handler) ListCHARequests(w http.ResponseWriter, r *http.Request) {
	chaID, err := strconv.ParseInt(chi.URLParam(r, "cha_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cha_id", err)
		return
	}
	if caller, ok := callerID(r); !ok || caller != chaID {
		writeError(w, http.StatusForbidden, "You can only view your own queue", nil)
		return
	}

	details, err := h.Review.PendingFor(r.Context(), chaID)
	if err != nil {
		h.internalError(w, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDetailDTOs(details))
}

// =============================================================================
// CHW HANDLERS
// =============================================================================

// SignupCHW registers a CHW awaiting approval.
// POST /api/chw/signup
func (h *Handler) SignupCHW(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	chw, err := h.Accounts.SignupCHW(r.Context(), accounts.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		CHUID:    req.CHUID,
	})
	if err != nil {
		h.accountError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCHWDTO(chw))
}

// LoginCHW authenticates an approved CHW.
// POST /api/chw/login
func (h *Handler) LoginCHW(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.Accounts.LoginCHW(r.Context(), req.Email, req.Password)
	if err != nil {
		h.accountError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CHWLoginResponse{Token: session.Token, CHW: toCHWDTO(session.CHW)})
}

// SetCHWApproval approves or rejects a CHW.
// POST /api/chw/{id}/approve
func (h *Handler) SetCHWApproval(w http.ResponseWriter, r *http.Request) {
	chwID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chw id", err)
		return
	}

	var req CHWApprovalRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.Accounts.SetCHWApproval(r.Context(), chwID, *req.Approve); err != nil {
		h.accountError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": chwID, "approved": *req.Approve})
}

// ListCHWs returns all CHWs, newest first.
// GET /api/chw/list
func (h *Handler) ListCHWs(w http.ResponseWriter, r *http.Request) {
	chws, err := h.Store.ListCHWs(r.Context())
	if err != nil {
		h.internalError(w, "Failed to list CHWs", err)
		return
	}
	writeJSON(w, http.StatusOK, toCHWSummaryDTOs(chws))
}

// ListApprovedCHWs returns approved CHWs ordered by name.
// GET /api/chw/approved
func (h *Handler) ListApprovedCHWs(w http.ResponseWriter, r *http.Request) {
	chws, err := h.Store.ListApprovedCHWs(r.Context())
	if err != nil {
		h.internalError(w, "Failed to list CHWs", err)
		return
	}
	writeJSON(w, http.StatusOK, toCHWSummaryDTOs(chws))
}

// ListCHWsWithCHA returns CHWs that have a supervising CHA.
// GET /api/chws
func (h *Handler) ListCHWsWithCHA(w http.ResponseWriter, r *http.Request) {
	chws, err := h.Store.ListCHWsWithCHA(r.Context())
	if err != nil {
		h.internalError(w, "Failed to list CHWs", err)
		return
	}
	writeJSON(w, http.StatusOK, toCHWSummaryDTOs(chws))
}

// Health reports whether the database answers.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Logger.Error("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Database: "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func (h *Handler) admissionError(w http.ResponseWriter, err error) {
	var (
		limitErr *admission.MonthlyLimitError
		qtyErr   *admission.InvalidQuantityError
	)
	switch {
	case errors.As(err, &limitErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("Monthly limit of %d exceeded. Current total: %d.", limitErr.Limit, limitErr.Total),
			Code:  admission.DenialCode(err),
			Details: MonthlyLimitDetails{
				Total:     limitErr.Total,
				Requested: limitErr.Requested,
				Limit:     limitErr.Limit,
			},
		})
	case errors.As(err, &qtyErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("Quantity must be a whole number between 1 and %d.", admission.MaxQuantity),
			Code:  admission.DenialCode(err),
		})
	case errors.Is(err, admission.ErrDuplicateForDay):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Only one request per CHW per commodity per day is allowed.",
			Code:  admission.DenialCode(err),
		})
	case errors.Is(err, admission.ErrUnknownReference):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Unknown CHW or commodity.",
			Code:  "unknown_reference",
		})
	default:
		h.internalError(w, "Failed to submit request", err)
	}
}

func (h *Handler) accountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accounts.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
	case errors.Is(err, accounts.ErrNotApproved):
		writeError(w, http.StatusForbidden, "Account not approved by admin yet", nil)
	case errors.Is(err, accounts.ErrEmailTaken):
		writeError(w, http.StatusConflict, "Email already registered", nil)
	case errors.Is(err, accounts.ErrWeakPassword), errors.Is(err, accounts.ErrPasswordTooLong),
		errors.Is(err, accounts.ErrCHUNotFound):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, accounts.ErrCHWNotFound), errors.Is(err, accounts.ErrCHANotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	default:
		h.internalError(w, "Account operation failed", err)
	}
}

// internalError logs err and returns a 500 without internal details.
func (h *Handler) internalError(w http.ResponseWriter, message string, err error) {
	h.Logger.Error(message, zap.Error(err))
	writeError(w, http.StatusInternalServerError, message, nil)
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeAndValidate decodes the JSON body into dst and runs its validation
// tags. It writes the 400 response itself and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]FieldError, len(verrs))
			for i, fe := range verrs {
				fields[i] = FieldError{Field: fe.Field(), Rule: fe.Tag()}
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "Validation failed",
				Code:    "validation_failed",
				Details: fields,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func queryInt64(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
