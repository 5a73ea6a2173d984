package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doorlist/backend/internal/engine"
	"github.com/doorlist/backend/internal/ingest"
	"github.com/doorlist/backend/internal/ledger"
	"github.com/doorlist/backend/internal/match"
	"github.com/doorlist/backend/internal/roster"
)

const (
	requestIDHeader = "X-Request-ID"
	timestampLayout = "2006-01-02 15:04:05"
)

var errMissingEngine = errors.New("reconciliation engine dependency required")

// Dependencies wires the HTTP adapter. Authorization is handled by an
// external collaborator in front of this service; the adapter only
// translates payloads and maps errors.
type Dependencies struct {
	Engine *engine.Engine
	Logger *zap.Logger
}

// NewHTTPHandler builds the gin handler binding the engine's wire contract.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Engine == nil {
		return nil, errMissingEngine
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{engine: deps.Engine, logger: logger}

	router.GET("/health", handler.handleHealth)
	router.POST("/guests", handler.handleAddGuest)
	router.GET("/guests", handler.handleListGuests)
	router.POST("/mark", handler.handleMark)
	router.GET("/search", handler.handleSearch)
	router.POST("/search/checkin", handler.handleFindAndCheckIn)
	router.POST("/import", handler.handleImport)
	router.DELETE("/clear_all", handler.handleClearAll)
	router.GET("/stats", handler.handleStats)

	return router, nil
}

// requestID echoes or issues a request identifier so log lines and responses
// can be correlated across the external layers.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			if value, err := uuid.NewV7(); err == nil {
				id = value.String()
			}
		}
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

type httpHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "doorlist"})
}

type guestPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (h *httpHandler) handleAddGuest(c *gin.Context) {
	var request guestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	guest, err := h.engine.AddGuest(c.Request.Context(), request.Code, request.Name)
	switch {
	case errors.Is(err, roster.ErrEmptyName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_name"})
	case errors.Is(err, roster.ErrDuplicateCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate_code"})
	case err != nil:
		h.logger.Error("add guest failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "add_guest_failed"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"guest":  guestPayload{Code: guest.Code, Name: guest.Name},
		})
	}
}

func (h *httpHandler) handleListGuests(c *gin.Context) {
	guests, err := h.engine.ListGuests(c.Request.Context())
	if err != nil {
		h.logger.Error("list guests failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_guests_failed"})
		return
	}

	payload := make([]guestPayload, 0, len(guests))
	for _, guest := range guests {
		payload = append(payload, guestPayload{Code: guest.Code, Name: guest.Name})
	}
	c.JSON(http.StatusOK, payload)
}

type markRequestPayload struct {
	Code   string `json:"code"`
	Method string `json:"method"`
}

type markDataPayload struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
	Method    string `json:"method"`
}

func (h *httpHandler) handleMark(c *gin.Context) {
	var request markRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.Method == "" {
		request.Method = string(ledger.MethodQR)
	}
	method, err := ledger.ParseMethod(request.Method)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_method"})
		return
	}

	result, err := h.engine.MarkIn(c.Request.Context(), request.Code, method)
	switch {
	case errors.Is(err, ledger.ErrCodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "code_not_found"})
	case err != nil:
		h.logger.Error("mark failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mark_failed"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"already_marked": result.AlreadyMarked,
			"data":           markData(result),
		})
	}
}

func markData(result ledger.MarkResult) markDataPayload {
	return markDataPayload{
		Code:      result.Code,
		Name:      result.Name,
		Timestamp: result.Timestamp.Format(timestampLayout),
		Method:    string(result.Method),
	}
}

type searchResultPayload struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Scanned bool   `json:"scanned"`
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	results, err := h.engine.Search(c.Request.Context(), c.Query("query"))
	switch {
	case errors.Is(err, match.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_query"})
	case err != nil:
		h.logger.Error("search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search_failed"})
	default:
		payload := make([]searchResultPayload, 0, len(results))
		for _, result := range results {
			payload = append(payload, searchResultPayload{
				Code:    result.Code,
				Name:    result.Name,
				Scanned: result.Scanned,
			})
		}
		c.JSON(http.StatusOK, payload)
	}
}

type findRequestPayload struct {
	Query  string `json:"query"`
	Method string `json:"method"`
}

func (h *httpHandler) handleFindAndCheckIn(c *gin.Context) {
	var request findRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.Method == "" {
		request.Method = string(ledger.MethodSearch)
	}
	method, err := ledger.ParseMethod(request.Method)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_method"})
		return
	}

	result, err := h.engine.FindAndCheckIn(c.Request.Context(), request.Query, method)
	switch {
	case errors.Is(err, match.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_query"})
	case err != nil:
		h.logger.Error("find and check in failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "checkin_failed"})
	default:
		matches := make([]searchResultPayload, 0, len(result.Matches))
		for _, matched := range result.Matches {
			matches = append(matches, searchResultPayload{
				Code:    matched.Code,
				Name:    matched.Name,
				Scanned: matched.Scanned,
			})
		}
		payload := gin.H{"outcome": string(result.Outcome), "matches": matches}
		if result.Mark != nil {
			payload["data"] = markData(*result.Mark)
		}
		c.JSON(http.StatusOK, payload)
	}
}

func (h *httpHandler) handleImport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}
	defer file.Close() //nolint:errcheck

	var table ingest.Table
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx", ".xls":
		table, err = ingest.ParseXLSX(file)
	case ".csv":
		table, err = ingest.ParseCSV(file)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_file"})
		return
	}
	if err != nil {
		h.logger.Warn("import file rejected", zap.String("filename", header.Filename), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_table", "detail": err.Error()})
		return
	}

	result, err := h.engine.ImportRoster(c.Request.Context(), table)
	switch {
	case errors.Is(err, ingest.ErrTooFewColumns):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_table", "detail": err.Error()})
	case err != nil:
		h.logger.Error("import failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import_failed"})
	default:
		payload := gin.H{
			"status":          "ok",
			"added_guests":    result.Added,
			"total_processed": result.TotalProcessed,
			"errors_count":    result.ErrorsCount,
		}
		if len(result.Errors) > 0 {
			payload["errors"] = result.Errors
		}
		c.JSON(http.StatusOK, payload)
	}
}

func (h *httpHandler) handleClearAll(c *gin.Context) {
	cleared, err := h.engine.ClearAll(c.Request.Context())
	if err != nil {
		h.logger.Error("clear all failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"deleted_guests": cleared.DeletedGuests,
		"deleted_marks":  cleared.DeletedMarks,
	})
}

func (h *httpHandler) handleStats(c *gin.Context) {
	stats, err := h.engine.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_guests":  stats.TotalGuests,
		"total_scanned": stats.TotalScanned,
	})
}
