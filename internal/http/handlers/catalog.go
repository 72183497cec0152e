package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/coursehub/internal/cache"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/utils"
)

type CatalogReader interface {
	ListSubjects(ctx context.Context) ([]course.Option, error)
	ListLevels(ctx context.Context) ([]course.Option, error)
	ListCourses(ctx context.Context, f course.ListFilter) ([]course.Course, error)
}

type CatalogHandler struct {
	repo    CatalogReader
	cache   cache.Store
	ttl     time.Duration
	timeout time.Duration
	prom    *observability.Prom
}

func NewCatalogHandler(repo CatalogReader, store cache.Store, ttl, timeout time.Duration, prom *observability.Prom) *CatalogHandler {
	if store == nil {
		store = cache.NewMemory(ttl)
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &CatalogHandler{repo: repo, cache: store, ttl: ttl, timeout: timeout, prom: prom}
}

// GET /courses/levels
func (h *CatalogHandler) Levels(ctx *gin.Context) {
	h.serveOptions(ctx, "levels", h.repo.ListLevels)
}

// GET /courses/subjects
func (h *CatalogHandler) Subjects(ctx *gin.Context) {
	h.serveOptions(ctx, "subjects", h.repo.ListSubjects)
}

func (h *CatalogHandler) serveOptions(ctx *gin.Context, family string, load func(context.Context) ([]course.Option, error)) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	items, hit, err := cache.GetOrLoadJSON(cctx, h.cache, utils.BuildCatalogCacheKey(family), h.ttl, load)
	if err != nil {
		slog.ErrorContext(ctx.Request.Context(), "catalog load failed", "family", family, "err", err)
		RespondInternal(ctx, "Could not load "+family)
		return
	}
	h.prom.IncCacheLookup(family, hit)

	if items == nil {
		items = []course.Option{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": items})
}

// GET /courses?subjectId=&levelId=
func (h *CatalogHandler) Courses(ctx *gin.Context) {
	var f course.ListFilter
	if !BindQuery(ctx, &f) {
		return
	}

	key := utils.BuildCatalogCacheKey("courses",
		"levelId", utils.Deref(f.LevelID),
		"subjectId", utils.Deref(f.SubjectID),
	)

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	items, hit, err := cache.GetOrLoadJSON(cctx, h.cache, key, h.ttl, func(c context.Context) ([]course.Course, error) {
		return h.repo.ListCourses(c, f)
	})
	if err != nil {
		slog.ErrorContext(ctx.Request.Context(), "course list failed", "err", err)
		RespondInternal(ctx, "Could not list courses")
		return
	}
	h.prom.IncCacheLookup("courses", hit)

	if items == nil {
		items = []course.Course{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"count": len(items),
		"items": items,
	})
}
