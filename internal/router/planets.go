package router

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/DjordjeVuckovic/planet-sync/internal/domain"
	"github.com/DjordjeVuckovic/planet-sync/internal/link"
	"github.com/DjordjeVuckovic/planet-sync/internal/planet"
	"github.com/DjordjeVuckovic/planet-sync/internal/publish"
	"github.com/DjordjeVuckovic/planet-sync/internal/scheduler"
	"github.com/DjordjeVuckovic/planet-sync/internal/storage"
	"github.com/DjordjeVuckovic/planet-sync/pkg/pagination"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Syncer runs planet syncs and follow-ups.
type Syncer interface {
	Sync(ctx context.Context, planetID uuid.UUID) (*scheduler.SyncResult, error)
	Refresh(ctx context.Context, planetID uuid.UUID) (*scheduler.SyncResult, error)
	Publish(ctx context.Context, planetID uuid.UUID) (*publish.Result, error)
	Enqueue(fu *domain.FollowUp) bool
}

type PlanetRouter struct {
	e       *echo.Echo
	planets *planet.Service
	syncer  Syncer
	now     func() time.Time
}

func NewPlanetRouter(e *echo.Echo, planets *planet.Service, syncer Syncer) *PlanetRouter {
	return &PlanetRouter{
		e:       e,
		planets: planets,
		syncer:  syncer,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *PlanetRouter) Bind() {
	r.e.GET("/planets", r.listPlanets)
	r.e.POST("/planets", r.createPlanet)
	r.e.GET("/planets/:id", r.getPlanet)
	r.e.PUT("/planets/:id", r.updatePlanet)
	r.e.DELETE("/planets/:id", r.deletePlanet)
	r.e.POST("/planets/:id/sync", r.syncPlanet)
	r.e.POST("/planets/:id/publish", r.publishPlanet)
	r.e.GET("/planets/:id/articles", r.listArticles)
	r.e.POST("/planets/:id/articles", r.createArticle)

	r.e.GET("/articles/:id", r.getArticle)
	r.e.PUT("/articles/:id", r.updateArticle)
	r.e.DELETE("/articles/:id", r.deleteArticle)
	r.e.PUT("/articles/:id/read", r.setRead)
	r.e.PUT("/articles/:id/star", r.setStarred)
	r.e.GET("/articles/:id/link", r.articleLink)
}

func (r *PlanetRouter) listPlanets(c echo.Context) error {
	planets, err := r.planets.ListPlanets(c.Request().Context())
	if err != nil {
		return err
	}
	if planets == nil {
		planets = []domain.Planet{}
	}
	return c.JSON(http.StatusOK, planets)
}

func (r *PlanetRouter) createPlanet(c echo.Context) error {
	var req CreatePlanetRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}

	ctx := c.Request().Context()
	var (
		p   *domain.Planet
		err error
	)
	if req.Follow != "" {
		p, err = r.planets.FollowPlanet(ctx, req.Follow)
	} else {
		p, err = r.planets.CreateOwnedPlanet(ctx, req.Name, req.About)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (r *PlanetRouter) getPlanet(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := r.planets.GetPlanet(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (r *PlanetRouter) updatePlanet(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req UpdatePlanetRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}
	p, fu, err := r.planets.UpdatePlanet(c.Request().Context(), id, req.Name, req.About)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r.mutation(p, fu))
}

func (r *PlanetRouter) deletePlanet(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := r.planets.DeletePlanet(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (r *PlanetRouter) syncPlanet(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var result *scheduler.SyncResult
	switch mode := c.QueryParam("mode"); mode {
	case "", "ingest":
		result, err = r.syncer.Sync(c.Request().Context(), id)
	case "refresh":
		result, err = r.syncer.Refresh(c.Request().Context(), id)
	default:
		return apperr.NewValidation(fmt.Sprintf("unknown sync mode %q", mode))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSyncResponse(result))
}

func (r *PlanetRouter) publishPlanet(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	result, err := r.syncer.Publish(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newPublishResponse(result))
}

func (r *PlanetRouter) listArticles(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := r.planets.GetPlanet(ctx, id); err != nil {
		return err
	}

	page := pagination.OffsetRequest{
		Page: queryInt(c, "page"),
		Size: queryInt(c, "size"),
	}
	_ = page.Validate()

	articles, err := r.planets.ListArticles(ctx, storage.ArticleFilter{
		PlanetID:    &id,
		UnreadOnly:  c.QueryParam("unread") == "true",
		StarredOnly: c.QueryParam("starred") == "true",
		Limit:       page.Size + 1,
		Offset:      page.Offset(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewOffsetResult(articles, page.Page, page.Size))
}

func (r *PlanetRouter) createArticle(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req ArticleRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}
	a, fu, err := r.planets.CreateArticle(c.Request().Context(), id, req.Title, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r.mutation(a, fu))
}

func (r *PlanetRouter) getArticle(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	a, err := r.planets.GetArticle(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (r *PlanetRouter) updateArticle(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req ArticleRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}
	a, fu, err := r.planets.UpdateArticle(c.Request().Context(), id, req.Title, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r.mutation(a, fu))
}

func (r *PlanetRouter) deleteArticle(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	fu, err := r.planets.DeleteArticle(c.Request().Context(), id)
	if err != nil {
		return err
	}
	r.enqueue(fu)
	return c.NoContent(http.StatusNoContent)
}

func (r *PlanetRouter) setRead(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req ReadRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}
	if err := r.planets.SetRead(c.Request().Context(), id, req.Read); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (r *PlanetRouter) setStarred(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req StarRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}
	if err := r.planets.SetStarred(c.Request().Context(), id, req.Starred); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (r *PlanetRouter) articleLink(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	gateway, ok := domain.ParseGateway(c.QueryParam("gateway"))
	if !ok {
		return apperr.NewValidation("unknown gateway " + c.QueryParam("gateway"))
	}

	ctx := c.Request().Context()
	a, err := r.planets.GetArticle(ctx, id)
	if err != nil {
		return err
	}
	p, err := r.planets.GetPlanet(ctx, a.PlanetID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LinkResponse{
		ArticleID: a.ID,
		Gateway:   gateway,
		URL:       link.Resolve(p, a, gateway),
	})
}

func (r *PlanetRouter) mutation(item any, fu *domain.FollowUp) MutationResponse {
	return MutationResponse{Item: item, Queued: r.enqueue(fu), At: r.now()}
}

func (r *PlanetRouter) enqueue(fu *domain.FollowUp) bool {
	if fu == nil {
		return false
	}
	return r.syncer.Enqueue(fu)
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NewValidationWrap("invalid id", err)
	}
	return id, nil
}

func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}
