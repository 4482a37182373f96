package coa

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chartkeep/chartkeep/internal/platform/httpx"
	"github.com/chartkeep/chartkeep/internal/shared"
)

// ReportReader serves point-in-time status reports, possibly from a cache.
type ReportReader interface {
	AccountsByStatusOnDate(ctx context.Context, status Status, day time.Time) ([]Account, error)
}

// Handler exposes the registry over JSON HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	reports  ReportReader
	idem     *shared.IdempotencyStore
	validate *validator.Validate
}

// NewHandler builds a Handler. reports and idem may be nil; reports falls
// back to the uncached service.
func NewHandler(logger *slog.Logger, service *Service, reports ReportReader, idem *shared.IdempotencyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if reports == nil {
		reports = service
	}
	return &Handler{
		logger:   logger,
		service:  service,
		reports:  reports,
		idem:     idem,
		validate: validator.New(),
	}
}

// MountRoutes registers registry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/account-types", h.listAccountTypes)
	r.Get("/reports/status/{status}", h.accountsByStatus)

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Route("/{number}", func(r chi.Router) {
			r.Get("/", h.showAccount)
			r.Patch("/", h.updateAccount)
			r.Get("/history", h.showHistory)
			r.Get("/status-on/{date}", h.statusOnDate)

			r.Post("/request-archival", h.statusAction(func(ctx context.Context, number string, req StatusActionRequest) (bool, error) {
				return h.service.RequestArchival(ctx, number, req.Reason, req.RequestedBy)
			}))
			r.Post("/request-unarchival", h.statusAction(func(ctx context.Context, number string, req StatusActionRequest) (bool, error) {
				return h.service.RequestUnarchival(ctx, number, req.Reason, req.RequestedBy)
			}))
			r.Post("/approve-creation", h.statusAction(func(ctx context.Context, number string, req StatusActionRequest) (bool, error) {
				return h.service.ApproveCreation(ctx, number, req.Reason, req.ApprovedBy)
			}))
			r.Post("/reject-creation", h.statusAction(func(ctx context.Context, number string, req StatusActionRequest) (bool, error) {
				return h.service.RejectCreation(ctx, number, req.Reason, req.ApprovedBy)
			}))
			r.Post("/approve-archival", h.statusAction(func(ctx context.Context, number string, req StatusActionRequest) (bool, error) {
				return h.service.ApproveArchival(ctx, number, req.Reason, req.ApprovedBy)
			}))
			r.Post("/reject-archival", h.statusAction(func(ctx context.Context, number string, req StatusActionRequest) (bool, error) {
				return h.service.RejectArchival(ctx, number, req.Reason, req.ApprovedBy)
			}))
			r.Post("/approve-unarchival", h.statusAction(func(ctx context.Context, number string, req StatusActionRequest) (bool, error) {
				return h.service.ApproveUnarchival(ctx, number, req.Reason, req.ApprovedBy)
			}))
			r.Post("/reject-unarchival", h.statusAction(func(ctx context.Context, number string, req StatusActionRequest) (bool, error) {
				return h.service.RejectUnarchival(ctx, number, req.Reason, req.ApprovedBy)
			}))
			r.Post("/activate", h.statusAction(func(ctx context.Context, number string, req StatusActionRequest) (bool, error) {
				return h.service.Activate(ctx, number, req.Reason, req.ApprovedBy)
			}))
			r.Post("/archive", h.statusAction(func(ctx context.Context, number string, req StatusActionRequest) (bool, error) {
				var day time.Time
				if req.ArchiveDate != nil {
					day = *req.ArchiveDate
				}
				return h.service.Archive(ctx, number, req.Reason, req.ApprovedBy, day)
			}))
			r.Post("/unarchive", h.statusAction(func(ctx context.Context, number string, req StatusActionRequest) (bool, error) {
				return h.service.Unarchive(ctx, number, req.Reason, req.ApprovedBy)
			}))
		})
	})
}

func (h *Handler) listAccountTypes(w http.ResponseWriter, r *http.Request) {
	types := AccountTypes()
	out := make([]AccountTypeResponse, 0, len(types))
	for _, t := range types {
		rng, _ := RangeForType(t.Name)
		out = append(out, AccountTypeResponse{
			Name:          t.Name,
			NormalBalance: string(t.NormalBalance),
			Description:   t.Description,
			RangeMin:      rng.Min,
			RangeMax:      rng.Max,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account_types": out})
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filters := ListFilters{
		Status:   Status(r.URL.Query().Get("status")),
		TypeName: r.URL.Query().Get("type"),
		Search:   r.URL.Query().Get("search"),
		Page:     page,
		Limit:    limit,
	}
	if filters.Status != "" && !filters.Status.IsValid() {
		h.respondError(w, &InvalidStatusError{Status: filters.Status})
		return
	}
	accounts, total, err := h.service.ListAccounts(r.Context(), filters)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out, "total": total})
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.CreateAccount(r.Context(), CreateAccountInput{
		Number:       req.Number,
		Name:         req.Name,
		TypeName:     req.AccountType,
		Description:  req.Description,
		ParentNumber: req.ParentNumber,
		RequestedBy:  req.RequestedBy,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) showAccount(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	account, err := h.service.GetAccount(r.Context(), number)
	if err != nil {
		h.respondError(w, err)
		return
	}
	history, err := h.service.StatusHistory(r.Context(), number)
	if err != nil {
		h.respondError(w, err)
		return
	}
	children, err := h.service.Children(r.Context(), account)
	if err != nil {
		h.respondError(w, err)
		return
	}
	historyOut := make([]HistoryResponse, 0, len(history))
	for _, e := range history {
		historyOut = append(historyOut, toHistoryResponse(e))
	}
	childrenOut := make([]AccountResponse, 0, len(children))
	for _, c := range children {
		childrenOut = append(childrenOut, toAccountResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"account":  toAccountResponse(account),
		"history":  historyOut,
		"children": childrenOut,
	})
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.UpdateAccount(r.Context(), chi.URLParam(r, "number"), UpdateAccountInput{
		Name:         req.Name,
		Description:  req.Description,
		ParentNumber: req.ParentNumber,
		Actor:        req.Actor,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) showHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.StatusHistory(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]HistoryResponse, 0, len(history))
	for _, e := range history {
		out = append(out, toHistoryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": out})
}

func (h *Handler) statusOnDate(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
		return
	}
	number := chi.URLParam(r, "number")
	status, ok, err := h.service.StatusOnDate(r.Context(), number, day)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := map[string]any{"number": number, "date": day.Format("2006-01-02")}
	if ok {
		resp["status"] = status
	} else {
		resp["status"] = nil
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) accountsByStatus(w http.ResponseWriter, r *http.Request) {
	status := Status(chi.URLParam(r, "status"))
	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	accounts, err := h.reports.AccountsByStatusOnDate(r.Context(), status, day)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"date":     dateOnly(day).Format("2006-01-02"),
		"accounts": out,
	})
}

type actionFunc func(ctx context.Context, number string, req StatusActionRequest) (bool, error)

// statusAction wraps a workflow operation with payload decoding and optional
// idempotency-key handling.
func (h *Handler) statusAction(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StatusActionRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}

		key := r.Header.Get("Idempotency-Key")
		if key != "" && h.idem != nil {
			if err := h.idem.CheckAndInsert(r.Context(), key, "coa"); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this action was already processed")
					return
				}
				h.respondError(w, err)
				return
			}
		}

		number := chi.URLParam(r, "number")
		changed, err := fn(r.Context(), number, req)
		if err != nil {
			if key != "" && h.idem != nil {
				_ = h.idem.Delete(r.Context(), key)
			}
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"number": number, "changed": changed})
	}
}

// respondError maps domain errors onto problem responses.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var (
		transitionErr *InvalidTransitionError
		statusErr     *InvalidStatusError
		rangeErr      *RangeError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate Number", err.Error())
	case errors.As(err, &transitionErr):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", transitionErr.Error())
	case errors.As(err, &statusErr):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Status", statusErr.Error())
	case errors.As(err, &rangeErr):
		httpx.Problem(w, http.StatusBadRequest, "Number Out Of Range", rangeErr.Error())
	case errors.Is(err, ErrNotNumeric),
		errors.Is(err, ErrUnknownAccountType),
		errors.Is(err, ErrSelfParent),
		errors.Is(err, ErrTypeMismatch),
		errors.Is(err, ErrCircularReference),
		errors.Is(err, ErrParentNotActive),
		errors.Is(err, ErrAccountArchived):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("unhandled error", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toAccountResponse(a Account) AccountResponse {
	return AccountResponse{
		Number:             a.Number,
		Name:               a.Name,
		AccountType:        a.TypeName,
		Description:        a.Description,
		ParentNumber:       a.ParentNumber,
		Status:             a.Status,
		IsActive:           a.IsActive,
		StatusChangeDate:   a.StatusChangeDate,
		StatusChangeReason: a.StatusChangeReason,
		RequestedBy:        a.RequestedBy,
		RequestedDate:      a.RequestedDate,
		ApprovedBy:         a.ApprovedBy,
		ApprovedDate:       a.ApprovedDate,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}
