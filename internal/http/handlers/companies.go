package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/coursehub/internal/domain/company"
	"github.com/geocoder89/coursehub/internal/http/middlewares"
	"github.com/geocoder89/coursehub/internal/utils"
)

type CompaniesReader interface {
	GetByID(ctx context.Context, id string) (company.Company, error)
	ListEmployees(ctx context.Context, companyID string, limit int, after *utils.Cursor) ([]company.Employee, *string, error)
}

type CompaniesHandler struct {
	repo    CompaniesReader
	timeout time.Duration
}

func NewCompaniesHandler(repo CompaniesReader, timeout time.Duration) *CompaniesHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &CompaniesHandler{repo: repo, timeout: timeout}
}

// authorize reports whether the caller may manage the company in :id and
// writes the error response when not.
func (h *CompaniesHandler) authorize(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")

	actor, ok := middlewares.ActorFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return "", false
	}
	if !actor.CanManageCompany(id) {
		RespondForbidden(ctx, "You are not allowed to manage this company")
		return "", false
	}
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Company not found")
		return "", false
	}
	return id, true
}

// GET /companies/:id
func (h *CompaniesHandler) Get(ctx *gin.Context) {
	id, ok := h.authorize(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	c, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, company.ErrNotFound) {
			RespondNotFound(ctx, "Company not found")
			return
		}
		slog.ErrorContext(ctx.Request.Context(), "company load failed", "company_id", id, "err", err)
		RespondInternal(ctx, "Could not load company")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, companyView{ID: c.ID, Name: c.Name, LogoURL: c.LogoURL})
}

type companyView struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	LogoURL *string `json:"logoUrl"`
}

// GET /companies/:id/employees?limit=50&cursor=
func (h *CompaniesHandler) Employees(ctx *gin.Context) {
	id, ok := h.authorize(ctx)
	if !ok {
		return
	}

	limit := parseIntDefault(ctx.Query("limit"), 50)
	if limit < 1 || limit > 200 {
		RespondBadRequest(ctx, "invalid_query", "limit must be between 1 and 200")
		return
	}

	var after *utils.Cursor
	if raw := ctx.Query("cursor"); raw != "" {
		cur, err := utils.DecodeCursor(raw)
		if err != nil {
			RespondBadRequest(ctx, "invalid_query", "cursor is invalid")
			return
		}
		after = &cur
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if _, err := h.repo.GetByID(cctx, id); err != nil {
		if errors.Is(err, company.ErrNotFound) {
			RespondNotFound(ctx, "Company not found")
			return
		}
		RespondInternal(ctx, "Could not load company")
		return
	}

	items, next, err := h.repo.ListEmployees(cctx, id, limit, after)
	if err != nil {
		slog.ErrorContext(ctx.Request.Context(), "employee list failed", "company_id", id, "err", err)
		RespondInternal(ctx, "Could not list employees")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"limit":      limit,
		"count":      len(items),
		"items":      items,
		"hasMore":    next != nil,
		"nextCursor": next,
	})
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// out of range on purpose so callers reject it
		return -1
	}
	return n
}
