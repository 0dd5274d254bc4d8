package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scribelab/scribes/internal/circles"
)

type createCircleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

func (h *httpHandler) handleCreateCircle(c *gin.Context) {
	var req createCircleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	record, err := h.circles.Create(c.Request.Context(), h.requesterID(c), circles.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, circleToPayload(record))
}

func (h *httpHandler) handleListCircles(c *gin.Context) {
	skip, limit := pagination(c)
	records, total, err := h.circles.ListForUser(c.Request.Context(), h.requesterID(c), skip, limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	payloads := make([]circlePayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, circleToPayload(record))
	}
	c.JSON(http.StatusOK, listEnvelope{Items: payloads, Total: total, Skip: skip, Limit: limit})
}

func (h *httpHandler) handleGetCircle(c *gin.Context) {
	record, err := h.circles.Get(c.Request.Context(), c.Param("circleID"), h.requesterID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, circleToPayload(record))
}

func (h *httpHandler) handleGetCircleDetail(c *gin.Context) {
	detail, err := h.circles.GetDetail(c.Request.Context(), c.Param("circleID"), h.requesterID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, circleDetailToPayload(detail))
}

type updateCircleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPrivate   *bool   `json:"is_private"`
}

func (h *httpHandler) handleUpdateCircle(c *gin.Context) {
	var req updateCircleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	record, err := h.circles.Update(c.Request.Context(), c.Param("circleID"), h.requesterID(c), circles.Patch{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, circleToPayload(record))
}

func (h *httpHandler) handleDeleteCircle(c *gin.Context) {
	if err := h.circles.Delete(c.Request.Context(), c.Param("circleID"), h.requesterID(c)); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListMembers(c *gin.Context) {
	skip, limit := pagination(c)
	records, total, err := h.circles.ListMembers(c.Request.Context(), c.Param("circleID"), h.requesterID(c), skip, limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: membersToPayload(records), Total: total, Skip: skip, Limit: limit})
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

func (h *httpHandler) handleAddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	role := circles.RoleMember
	if req.Role != "" {
		parsed, err := circles.ParseRole(req.Role)
		if err != nil {
			h.renderError(c, err)
			return
		}
		role = parsed
	}
	status := circles.StatusActive
	if req.Status != "" {
		parsed, err := circles.ParseStatus(req.Status)
		if err != nil {
			h.renderError(c, err)
			return
		}
		status = parsed
	}
	record, err := h.circles.AddMember(c.Request.Context(), c.Param("circleID"), h.requesterID(c), circles.MemberInput{
		UserID: req.UserID,
		Role:   role,
		Status: status,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, memberToPayload(record))
}

type inviteMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *httpHandler) handleInviteMember(c *gin.Context) {
	var req inviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	role := circles.RoleMember
	if req.Role != "" {
		parsed, err := circles.ParseRole(req.Role)
		if err != nil {
			h.renderError(c, err)
			return
		}
		role = parsed
	}
	record, err := h.circles.InviteMember(c.Request.Context(), c.Param("circleID"), h.requesterID(c), circles.InviteInput{
		UserID: req.UserID,
		Role:   role,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, memberToPayload(record))
}

type updateMemberRequest struct {
	Role   *string `json:"role"`
	Status *string `json:"status"`
}

func (h *httpHandler) handleUpdateMember(c *gin.Context) {
	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	var patch circles.MemberPatch
	if req.Role != nil {
		parsed, err := circles.ParseRole(*req.Role)
		if err != nil {
			h.renderError(c, err)
			return
		}
		patch.Role = &parsed
	}
	if req.Status != nil {
		parsed, err := circles.ParseStatus(*req.Status)
		if err != nil {
			h.renderError(c, err)
			return
		}
		patch.Status = &parsed
	}
	record, err := h.circles.UpdateMember(c.Request.Context(), c.Param("circleID"), c.Param("userID"), h.requesterID(c), patch)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, memberToPayload(record))
}

func (h *httpHandler) handleRemoveMember(c *gin.Context) {
	err := h.circles.RemoveMember(c.Request.Context(), c.Param("circleID"), c.Param("userID"), h.requesterID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListSharedNotes(c *gin.Context) {
	skip, limit := pagination(c)
	records, total, err := h.circles.ListSharedNotes(c.Request.Context(), c.Param("circleID"), h.requesterID(c), skip, limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Items: notesToPayload(records), Total: total, Skip: skip, Limit: limit})
}

func (h *httpHandler) handleShareNote(c *gin.Context) {
	record, err := h.circles.ShareNote(c.Request.Context(), c.Param("circleID"), c.Param("noteID"), h.requesterID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, noteToPayload(record))
}

func (h *httpHandler) handleUnshareNote(c *gin.Context) {
	err := h.circles.UnshareNote(c.Request.Context(), c.Param("circleID"), c.Param("noteID"), h.requesterID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
