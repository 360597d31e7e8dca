package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/scoreregistry/internal/score/application"
	"github.com/davicafu/scoreregistry/internal/score/domain"
	"github.com/davicafu/scoreregistry/internal/shared/infra/http/middleware"
	"github.com/davicafu/scoreregistry/internal/shared/platform/paging"
	"github.com/davicafu/scoreregistry/pkg/utils"
)

var errInvalidParam = errors.New("invalid parameter")

// ScoreReader es lo que el handler necesita del servicio.
type ScoreReader interface {
	ListScores(ctx context.Context, accountID, scorerID int64, p application.ListScoresParams) (*paging.Page[*domain.Score], error)
	ListScoreHistory(ctx context.Context, accountID, scorerID int64, p application.HistoryParams) (*paging.Page[*domain.ScoreEvent], error)
	GetScore(ctx context.Context, accountID, scorerID int64, address string) (*domain.Score, error)
	MaxLimit() int
}

// pageResponse es el cuerpo de los listados paginados.
type pageResponse[T any] struct {
	Items []T     `json:"items"`
	Next  *string `json:"next"`
	Prev  *string `json:"prev"`
}

// ScoreHandler encapsula los endpoints de lectura de scores.
type ScoreHandler struct {
	service             ScoreReader
	baseURL             string
	trustForwardedProto bool
	log                 *zap.Logger
}

// NewScoreHandler crea el handler. Si baseURL está vacío, los enlaces se
// construyen con el esquema y host de cada petición. X-Forwarded-Proto solo
// se tiene en cuenta con trustForwardedProto (API detrás de un proxy propio).
func NewScoreHandler(service ScoreReader, baseURL string, trustForwardedProto bool, log *zap.Logger) *ScoreHandler {
	return &ScoreHandler{service: service, baseURL: baseURL, trustForwardedProto: trustForwardedProto, log: log}
}

// ListScores endpoint GET /v2/score/:scorer_id
func (h *ScoreHandler) ListScores(c *gin.Context) {
	scorerID, limit, err := h.common(c)
	if err != nil {
		h.sendError(c, err)
		return
	}

	p := application.ListScoresParams{
		Address: c.Query(application.FilterAddress),
		Token:   c.Query("token"),
		Limit:   limit,
	}
	if p.LastScoreTimestampGt, err = timeQuery(c, application.FilterLastScoreTimestampGt); err != nil {
		h.sendError(c, err)
		return
	}
	if p.LastScoreTimestampGte, err = timeQuery(c, application.FilterLastScoreTimestampGte); err != nil {
		h.sendError(c, err)
		return
	}

	page, err := h.service.ListScores(c.Request.Context(), middleware.AccountID(c), scorerID, p)
	if err != nil {
		h.sendError(c, err)
		return
	}
	respond(h, c, page, limit)
}

// ListScoreHistory endpoint GET /v2/score/:scorer_id/history
func (h *ScoreHandler) ListScoreHistory(c *gin.Context) {
	scorerID, limit, err := h.common(c)
	if err != nil {
		h.sendError(c, err)
		return
	}

	p := application.HistoryParams{
		Address: c.Query(application.FilterAddress),
		Token:   c.Query("token"),
		Limit:   limit,
	}
	if p.CreatedAt, err = timeQuery(c, application.FilterCreatedAt); err != nil {
		h.sendError(c, err)
		return
	}

	page, err := h.service.ListScoreHistory(c.Request.Context(), middleware.AccountID(c), scorerID, p)
	if err != nil {
		h.sendError(c, err)
		return
	}
	respond(h, c, page, limit)
}

// GetScore endpoint GET /v2/score/:scorer_id/:address
func (h *ScoreHandler) GetScore(c *gin.Context) {
	scorerID, err := scorerParam(c)
	if err != nil {
		h.sendError(c, err)
		return
	}

	score, err := h.service.GetScore(c.Request.Context(), middleware.AccountID(c), scorerID, c.Param("address"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, score)
}

// --- Helpers ---

func scorerParam(c *gin.Context) (int64, error) {
	scorerID, err := strconv.ParseInt(c.Param("scorer_id"), 10, 64)
	if err != nil || scorerID <= 0 {
		return 0, fmt.Errorf("%w: scorer_id", errInvalidParam)
	}
	return scorerID, nil
}

// common lee scorer_id y limit, comunes a los listados.
func (h *ScoreHandler) common(c *gin.Context) (int64, int, error) {
	scorerID, err := scorerParam(c)
	if err != nil {
		return 0, 0, err
	}

	raw, ok := c.GetQuery("limit")
	if !ok {
		return scorerID, h.service.MaxLimit(), nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", paging.ErrInvalidLimit, raw)
	}
	return scorerID, limit, nil
}

func timeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC 3339", errInvalidParam, name)
	}
	return &t, nil
}

func respond[T paging.Record](h *ScoreHandler, c *gin.Context, page *paging.Page[T], limit int) {
	links := paging.NewLinkBuilder(h.base(c), c.Request.URL.Path)
	next, prev, err := paging.Links(links, page, limit)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, pageResponse[T]{Items: page.Items, Next: next, Prev: prev})
}

func (h *ScoreHandler) base(c *gin.Context) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if h.trustForwardedProto {
		switch proto := c.GetHeader("X-Forwarded-Proto"); proto {
		case "http", "https":
			scheme = proto
		}
	}
	return scheme + "://" + c.Request.Host
}

// sendError traduce los errores de dominio a códigos HTTP.
func (h *ScoreHandler) sendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, paging.ErrInvalidLimit),
		errors.Is(err, paging.ErrInvalidCursor),
		errors.Is(err, domain.ErrInvalidScore),
		errors.Is(err, errInvalidParam):
		utils.SendBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		utils.SendNotFound(c, err.Error())
	default:
		h.log.Error("Score request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		utils.SendInternalServerError(c, "internal error")
	}
}
