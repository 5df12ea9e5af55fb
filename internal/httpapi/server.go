package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"reviewpulse/internal/analyze"
	"reviewpulse/internal/domain"
	"reviewpulse/internal/insights"
	"reviewpulse/internal/session"
	"reviewpulse/internal/snapshot"
	"reviewpulse/internal/validate"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const maxSnapshotBytes = 64 << 20

// Server exposes one analysis session over HTTP.
type Server struct {
	sess *session.Session
	e    *echo.Echo
}

func New(sess *session.Session) *Server {
	e := echo.New()
	e.Validator = validate.New()
	e.HideBanner = true
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(middleware.Recover())

	s := &Server{sess: sess, e: e}
	e.GET("/health", s.health)
	v1 := e.Group("/v1")
	v1.POST("/analyze", s.analyze)
	v1.GET("/dashboard", s.dashboard)
	v1.GET("/kpi", s.kpi)
	v1.GET("/trend", s.trend)
	v1.GET("/kpi/:category/suggestions", s.kpiSuggestions)
	v1.GET("/reviews/:category", s.interleaved)
	v1.POST("/ask", s.ask)
	v1.POST("/reviews/:id/reply", s.reply)
	v1.GET("/snapshot", s.exportSnapshot)
	v1.PUT("/snapshot", s.importSnapshot)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	log.Printf("httpapi listening addr=%s", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// toHTTPError maps session and pipeline failures onto status codes.
func toHTTPError(err error) error {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, session.ErrNoData), errors.Is(err, session.ErrReviewNotFound):
		code = http.StatusNotFound
	case errors.Is(err, session.ErrEmptyQuestion), errors.Is(err, snapshot.ErrInvalidFormat):
		code = http.StatusBadRequest
	case errors.Is(err, session.ErrSuperseded):
		code = http.StatusConflict
	default:
		if kind, ok := analyze.KindOf(err); ok && kind == analyze.KindIngestion {
			code = http.StatusBadRequest
		}
	}
	return echo.NewHTTPError(code, err.Error())
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"loaded":  s.sess.Loaded(),
		"running": s.sess.Running(),
	})
}

type itemRequest struct {
	Text      string   `json:"text" validate:"required"`
	Date      string   `json:"date"`
	Rating    *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	GuestName string   `json:"guestName"`
}

type analyzeRequest struct {
	Items []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r analyzeRequest) toItems(loc *time.Location) ([]domain.RawFeedbackItem, error) {
	items := make([]domain.RawFeedbackItem, 0, len(r.Items))
	for i, in := range r.Items {
		item := domain.RawFeedbackItem{ID: i, Text: strings.TrimSpace(in.Text), Rating: in.Rating, GuestName: in.GuestName}
		if in.Date != "" {
			d, err := domain.ParseReviewDateIn(in.Date, loc)
			if err != nil {
				return nil, fmt.Errorf("items[%d]: %w", i, err)
			}
			item.Date = &d
		}
		items = append(items, item)
	}
	return items, nil
}

type analyzeResponse struct {
	RunID     string        `json:"runId"`
	Reviews   int           `json:"reviews"`
	Stats     analyze.Stats `json:"stats"`
	ElapsedMS int64         `json:"elapsedMs"`
}

func (s *Server) analyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, err := req.toItems(s.sess.Location())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// The run belongs to the session, so a dropped client does not cancel it.
	res, err := s.sess.Ingest(context.WithoutCancel(c.Request().Context()), items)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, analyzeResponse{
		RunID:     res.RunID,
		Reviews:   len(res.Dashboard.Reviews),
		Stats:     res.Stats,
		ElapsedMS: res.Elapsed.Milliseconds(),
	})
}

func (s *Server) dashboard(c echo.Context) error {
	d, err := s.sess.Dashboard()
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

type kpiResponse struct {
	insights.KPIs
	BestTopic  *domain.DetailedTopicAnalysis `json:"bestTopic"`
	WorstTopic *domain.DetailedTopicAnalysis `json:"worstTopic"`
}

func (s *Server) kpi(c echo.Context) error {
	k, err := s.sess.KPIs()
	if err != nil {
		return toHTTPError(err)
	}
	best, worst, err := s.sess.Performance()
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, kpiResponse{KPIs: k, BestTopic: best, WorstTopic: worst})
}

func (s *Server) trend(c echo.Context) error {
	points, wow, err := s.sess.Trend()
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"points": points, "comparison": wow})
}

func categoryParam(c echo.Context) (domain.KpiCategory, error) {
	category, ok := domain.ParseKpiCategory(c.Param("category"))
	if !ok {
		return "", echo.NewHTTPError(http.StatusBadRequest, "category must be 'critical' or 'praise'")
	}
	return category, nil
}

func (s *Server) kpiSuggestions(c echo.Context) error {
	category, err := categoryParam(c)
	if err != nil {
		return err
	}
	suggestions, err := s.sess.KpiSuggestions(c.Request().Context(), category)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"category": category, "suggestions": suggestions})
}

func (s *Server) interleaved(c echo.Context) error {
	category, err := categoryParam(c)
	if err != nil {
		return err
	}
	reviews, err := s.sess.Interleaved(category)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"category": category, "reviews": reviews})
}

type askRequest struct {
	Question string `json:"question" validate:"required"`
}

func (s *Server) ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	answer, err := s.sess.Ask(c.Request().Context(), req.Question)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) reply(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "review id must be an integer")
	}
	reply, err := s.sess.Reply(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"id": id, "reply": reply})
}

func (s *Server) exportSnapshot(c echo.Context) error {
	data, err := s.sess.Export()
	if err != nil {
		return toHTTPError(err)
	}
	name := fmt.Sprintf("review-analysis-%s.json", time.Now().UTC().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func (s *Server) importSnapshot(c echo.Context) error {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxSnapshotBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading body failed")
	}
	if err := s.sess.Import(data); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
