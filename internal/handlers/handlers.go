package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/survival-check/internal/logging"
	"github.com/example/survival-check/internal/passenger"
	"github.com/example/survival-check/internal/projector"
	"github.com/example/survival-check/internal/scorer"
	"github.com/example/survival-check/internal/session"
)

// Scorer is the subset of the scoring client the routes use.
type Scorer interface {
	Predict(ctx context.Context, in passenger.Input) (scorer.Result, error)
	Ping(ctx context.Context) error
}

// Dependencies carries everything RegisterRoutes wires together.
type Dependencies struct {
	Scorer   Scorer
	Sessions *session.Manager
	// Mirror is optional; when set, session reads are served from it first.
	Mirror *session.Mirror
	Strict bool
	Logger *zap.Logger
}

type predictResponse struct {
	State session.State   `json:"state"`
	View  *projector.View `json:"view,omitempty"`
}

type sessionResponse struct {
	session.Snapshot
	View *projector.View `json:"view,omitempty"`
}

type fieldRequest struct {
	Name  string          `json:"name" binding:"required"`
	Value json.RawMessage `json:"value" binding:"required"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("handlers")

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		if err := deps.Scorer.Ping(c.Request.Context()); err != nil {
			logger.Warn("scoring service not ready", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/predict", func(c *gin.Context) {
		var in passenger.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid passenger payload"})
			return
		}

		requestID := uuid.NewString()
		if deps.Strict {
			if err := in.Validate(); err != nil {
				c.JSON(http.StatusUnprocessableEntity, predictResponse{State: session.Outcome(requestID, scorer.Result{}, err)})
				return
			}
		}

		ctx := logging.ContextWithRequestID(c.Request.Context(), requestID)
		res, err := deps.Scorer.Predict(ctx, in)
		st := session.Outcome(requestID, res, err)
		if err != nil {
			c.JSON(failureStatus(err), predictResponse{State: st})
			return
		}
		view := projector.Project(res)
		c.JSON(http.StatusOK, predictResponse{State: st, View: &view})
	})

	sessions := router.Group("/sessions")

	sessions.POST("", func(c *gin.Context) {
		s := deps.Sessions.Create()
		c.JSON(http.StatusCreated, newSessionResponse(s.Snapshot()))
	})

	// Live sessions are answered from the registry. The mirror only serves
	// ids this process does not hold.
	sessions.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		if s, err := deps.Sessions.Get(id); err == nil {
			c.JSON(http.StatusOK, newSessionResponse(s.Snapshot()))
			return
		}

		if deps.Mirror != nil {
			snap, err := deps.Mirror.Load(c.Request.Context(), id)
			if err == nil {
				c.JSON(http.StatusOK, newSessionResponse(snap))
				return
			}
			if !errors.Is(err, session.ErrNotFound) {
				logging.WithOperation(logger, "handlers.get_session", "").Warn("failed to read mirror", zap.Error(err))
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	})

	sessions.PATCH("/:id/fields", func(c *gin.Context) {
		s, err := deps.Sessions.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		var req fieldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and value are required"})
			return
		}
		if err := s.SetField(req.Name, rawValue(req.Value)); err != nil {
			if errors.Is(err, session.ErrClosed) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, newSessionResponse(s.Snapshot()))
	})

	sessions.POST("/:id/submit", func(c *gin.Context) {
		s, err := deps.Sessions.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		seq, err := s.Submit()
		switch {
		case errors.Is(err, session.ErrSubmitInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case errors.Is(err, session.ErrClosed):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"seq": seq})
	})

	sessions.DELETE("/:id", func(c *gin.Context) {
		id := c.Param("id")
		if err := deps.Sessions.Remove(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if deps.Mirror != nil {
			if err := deps.Mirror.Forget(c.Request.Context(), id); err != nil {
				logging.WithOperation(logger, "handlers.delete_session", "").Warn("failed to drop mirrored session", zap.Error(err))
			}
		}
		c.Status(http.StatusNoContent)
	})
}

func newSessionResponse(snap session.Snapshot) sessionResponse {
	resp := sessionResponse{Snapshot: snap}
	if snap.State.Phase == session.PhaseSucceeded && snap.State.Result != nil {
		view := projector.Project(*snap.State.Result)
		resp.View = &view
	}
	return resp
}

// failureStatus maps a prediction failure onto the status returned to our
// own caller. Upstream 4xx rejections are passed through.
func failureStatus(err error) int {
	var se *scorer.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case scorer.KindTimeout:
			return http.StatusGatewayTimeout
		case scorer.KindServer:
			if se.Status >= 400 && se.Status < 500 {
				return se.Status
			}
		}
	}
	return http.StatusBadGateway
}

// rawValue accepts either a JSON string or any other JSON literal as the
// raw text typed by the user.
func rawValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
