package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scribelab/scribes/internal/notes"
)

type createNoteRequest struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Preacher      string   `json:"preacher"`
	Tags          []string `json:"tags"`
	ScriptureRefs []string `json:"scripture_refs"`
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	record, err := h.notes.Create(c.Request.Context(), h.requesterID(c), notes.CreateInput{
		Title:         req.Title,
		Content:       req.Content,
		Preacher:      req.Preacher,
		Tags:          req.Tags,
		ScriptureRefs: req.ScriptureRefs,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, noteToPayload(record))
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	skip, limit := pagination(c)
	records, total, err := h.notes.List(c.Request.Context(), h.requesterID(c), skip, limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: notesToPayload(records), Total: total, Skip: skip, Limit: limit})
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	record, err := h.notes.Get(c.Request.Context(), c.Param("noteID"), h.requesterID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, noteToPayload(record))
}

type updateNoteRequest struct {
	Title         *string   `json:"title"`
	Content       *string   `json:"content"`
	Preacher      *string   `json:"preacher"`
	Tags          *[]string `json:"tags"`
	ScriptureRefs *[]string `json:"scripture_refs"`
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	var req updateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	record, err := h.notes.Update(c.Request.Context(), c.Param("noteID"), h.requesterID(c), notes.Patch{
		Title:         req.Title,
		Content:       req.Content,
		Preacher:      req.Preacher,
		Tags:          req.Tags,
		ScriptureRefs: req.ScriptureRefs,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, noteToPayload(record))
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	if err := h.notes.Delete(c.Request.Context(), c.Param("noteID"), h.requesterID(c)); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
