package handlers

import (
	"errors"
	"medtrack/internal/config"
	"medtrack/internal/models"
	"medtrack/internal/services"
	"strconv"

	"github.com/gin-gonic/gin"
)

type RecordHandler struct {
	recordService *services.RecordService
}

func NewRecordHandler(cfg *config.Config) *RecordHandler {
	return &RecordHandler{
		recordService: services.NewRecordService(cfg),
	}
}

type RecordRequest struct {
	Date           string `json:"date" binding:"required"`
	MorningTaken   bool   `json:"morning_taken"`
	AfternoonTaken bool   `json:"afternoon_taken"`
	EveningTaken   bool   `json:"evening_taken"`
	Notes          string `json:"notes"`
}

func currentUser(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(401, gin.H{"error": "Not authenticated"})
		return nil, false
	}
	return user.(*models.User), true
}

// GetRecords returns all records owned by the current user
func (h *RecordHandler) GetRecords(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}

	records, err := h.recordService.GetRecords(u.ID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get records"})
		return
	}

	c.JSON(200, gin.H{"records": records})
}

// GetRecentRecords returns the current user's records from the recent window
func (h *RecordHandler) GetRecentRecords(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}

	records, err := h.recordService.GetRecentRecords(u.ID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get records"})
		return
	}

	c.JSON(200, gin.H{"records": records})
}

// CreateRecord creates a new record for the current user
func (h *RecordHandler) CreateRecord(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}

	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	record, err := h.recordService.CreateRecord(u.ID, services.RecordData{
		Date:           req.Date,
		MorningTaken:   req.MorningTaken,
		AfternoonTaken: req.AfternoonTaken,
		EveningTaken:   req.EveningTaken,
		Notes:          req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRecordExists):
			c.JSON(409, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrInvalidDate):
			c.JSON(400, gin.H{"error": err.Error()})
		default:
			c.JSON(500, gin.H{"error": "Failed to create record"})
		}
		return
	}

	logAudit(u.ID, "record_create", "record", strconv.FormatUint(uint64(record.ID), 10), c)

	c.JSON(201, record)
}

// UpdateRecord updates an existing record owned by the current user
func (h *RecordHandler) UpdateRecord(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid record ID"})
		return
	}

	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	record, err := h.recordService.UpdateRecord(u.ID, uint(id), services.RecordData{
		Date:           req.Date,
		MorningTaken:   req.MorningTaken,
		AfternoonTaken: req.AfternoonTaken,
		EveningTaken:   req.EveningTaken,
		Notes:          req.Notes,
	})
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to update record"})
		return
	}

	logAudit(u.ID, "record_update", "record", strconv.FormatUint(uint64(record.ID), 10), c)

	c.JSON(200, record)
}

// GetAllRecords returns every record in the system (admin only, enforced by routing)
func (h *RecordHandler) GetAllRecords(c *gin.Context) {
	records, err := h.recordService.GetAllRecords()
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get records"})
		return
	}

	c.JSON(200, gin.H{"records": records})
}
