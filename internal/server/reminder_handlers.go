package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scribelab/scribes/internal/reminders"
)

type createReminderRequest struct {
	NoteID      string    `json:"note_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

func (h *httpHandler) handleCreateReminder(c *gin.Context) {
	var req createReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	reminder, err := h.reminders.Create(c.Request.Context(), h.requesterID(c), req.NoteID, req.ScheduledAt)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reminderToPayload(reminder))
}

func (h *httpHandler) handleListReminders(c *gin.Context) {
	skip, limit := pagination(c)
	records, total, err := h.reminders.List(c.Request.Context(), h.requesterID(c), skip, limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	payloads := make([]reminderPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, reminderToPayload(record))
	}
	c.JSON(http.StatusOK, listEnvelope{Items: payloads, Total: total, Skip: skip, Limit: limit})
}

func (h *httpHandler) handleGetReminder(c *gin.Context) {
	reminder, err := h.reminders.Get(c.Request.Context(), c.Param("reminderID"), h.requesterID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, reminderToPayload(reminder))
}

type updateReminderRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
	Status      *string    `json:"status"`
}

func (h *httpHandler) handleUpdateReminder(c *gin.Context) {
	var req updateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	var patch reminders.Patch
	patch.ScheduledAt = req.ScheduledAt
	if req.Status != nil {
		parsed, err := reminders.ParseStatus(*req.Status)
		if err != nil {
			h.renderError(c, err)
			return
		}
		patch.Status = &parsed
	}
	reminder, err := h.reminders.Update(c.Request.Context(), c.Param("reminderID"), h.requesterID(c), patch)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, reminderToPayload(reminder))
}

func (h *httpHandler) handleCancelReminder(c *gin.Context) {
	reminder, err := h.reminders.Cancel(c.Request.Context(), c.Param("reminderID"), h.requesterID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, reminderToPayload(reminder))
}

func (h *httpHandler) handleDeleteReminder(c *gin.Context) {
	if err := h.reminders.Delete(c.Request.Context(), c.Param("reminderID"), h.requesterID(c)); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
