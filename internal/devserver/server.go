// Package devserver is a reference implementation of the remote API surface
// the offline sync engine talks to. It keeps everything in memory and exists
// for simulations and tests; the contract it implements (idempotent upsert
// keyed by the client-supplied identifier) is the one a production backend
// must honor.
package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YounesEssl/molyscan-sync/internal/auth"
	"github.com/YounesEssl/molyscan-sync/offsync"
)

// Server serves the molyscan sync API endpoints.
type Server struct {
	auth   *auth.JWTAuth
	store  *memStore
	logger *slog.Logger
}

// NewServer creates a dev server validating tokens with jwtSecret.
func NewServer(jwtSecret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		auth:   auth.NewJWTAuth(jwtSecret),
		store:  newMemStore(),
		logger: logger,
	}
}

// Router builds the gin router.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	v1.Use(s.authRequired())
	{
		v1.POST("/scans", s.createScan)
		v1.GET("/scans", s.listScans)
		v1.POST("/workflows/price", s.createPriceWorkflow)
		v1.GET("/workflows/price", s.listPriceWorkflows)
		v1.PATCH("/voice-notes/:id", s.patchVoiceNote)
		v1.GET("/voice-notes/:id", s.getVoiceNote)
	}
	return r
}

const userIDKey = "userID"

func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		claims, err := s.auth.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userIDKey, claims.Subject)
		c.Request = c.Request.WithContext(
			auth.SetDeviceID(auth.SetUserID(c.Request.Context(), claims.Subject), claims.DeviceID))
		c.Next()
	}
}

func userIDFrom(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (s *Server) createScan(c *gin.Context) {
	var sub offsync.ScanSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	if sub.ID == "" || sub.Barcode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id and barcode are required"})
		return
	}

	record, created := s.store.upsertScan(userIDFrom(c), sub)
	status := http.StatusCreated
	if !created {
		// Replay of an already-accepted scan: same record, no duplicate.
		status = http.StatusOK
	}
	s.logger.Debug("scan submitted", "id", sub.ID, "barcode", sub.Barcode, "created", created)
	c.JSON(status, record)
}

func (s *Server) listScans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.store.listScans()})
}

func (s *Server) createPriceWorkflow(c *gin.Context) {
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header required"})
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	wf, created := s.store.createWorkflow(userIDFrom(c), key, body)
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, wf)
}

func (s *Server) listPriceWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.store.listWorkflows()})
}

func (s *Server) patchVoiceNote(c *gin.Context) {
	noteID := c.Param("id")
	var fields map[string]json.RawMessage
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}

	note, applied := s.store.patchVoiceNote(noteID, c.GetHeader("Idempotency-Key"), fields)
	s.logger.Debug("voice note patched", "noteId", noteID, "applied", applied)
	c.JSON(http.StatusOK, note)
}

func (s *Server) getVoiceNote(c *gin.Context) {
	note, ok := s.store.getVoiceNote(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "voice note not found"})
		return
	}
	c.JSON(http.StatusOK, note)
}
