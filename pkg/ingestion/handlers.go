package ingestion

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kerlexov/logcollector/pkg/broadcast"
	"github.com/kerlexov/logcollector/pkg/logservice"
	"github.com/kerlexov/logcollector/pkg/models"
)

// handleRoot answers liveness probes and accepts WebSocket upgrades on the root path
func (s *Server) handleRoot(c *gin.Context) {
	if s.broadcast != nil && broadcast.IsWebSocketUpgrade(c.Request) {
		s.handleWebSocket(c)
		return
	}

	c.String(http.StatusOK, Banner)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	s.broadcast.ServeWebSocket(c.Writer, c.Request)
}

// handleSubmit creates a log record
func (s *Server) handleSubmit(c *gin.Context) {
	var submission models.Submission
	if err := c.ShouldBindJSON(&submission); err != nil {
		s.respondBindError(c, err)
		return
	}

	record, err := s.service.Submit(c.Request.Context(), submission)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// handleQuery lists log records newest first
func (s *Server) handleQuery(c *gin.Context) {
	page, err := logservice.ParsePage(c.Query("limit"), c.Query("offset"))
	if err != nil {
		s.metrics.IncrementValidationErrors()
		s.respondServiceError(c, err)
		return
	}

	filter := models.Filter{
		StakeUsername: c.Query("stakeUsername"),
		Level:         c.Query("level"),
		Search:        c.Query("q"),
	}

	records, err := s.service.Query(c.Request.Context(), filter, page)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	if records == nil {
		records = []models.LogRecord{}
	}

	c.JSON(http.StatusOK, records)
}

// handlePurge deletes every log record
func (s *Server) handlePurge(c *gin.Context) {
	result, err := s.service.PurgeAll(c.Request.Context())
	if err != nil {
		s.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleHealthCheck reports component health; 503 when the store is unavailable
func (s *Server) handleHealthCheck(c *gin.Context) {
	report := s.health.Check(c.Request.Context())

	status := http.StatusOK
	if !report.Available() {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, report)
}
