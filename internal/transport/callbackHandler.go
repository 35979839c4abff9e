package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupsend/internal/service"
)

// CallbackHandler receives due-timer callbacks from external
// schedulers. The dispatcher is idempotent, so at-least-once delivery
// with retries on the caller's side is safe.
type CallbackHandler struct {
	dispatchService service.DispatchService
}

func NewCallbackHandler(dispatchService service.DispatchService) *CallbackHandler {
	return &CallbackHandler{dispatchService: dispatchService}
}

// DueCallbackRequest identifies the timer that fired.
type DueCallbackRequest struct {
	MessageID  string `json:"message_id" binding:"required,uuid"`
	Kind       string `json:"kind" binding:"required,oneof=send reminder"`
	ReminderID int64  `json:"reminder_id,omitempty"`
}

func (h *CallbackHandler) Due(c *gin.Context) {
	var req DueCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	if req.Kind == service.TaskKindReminder {
		if req.ReminderID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reminder_id is required for reminder callbacks"})
			return
		}
		if err := h.dispatchService.DispatchReminder(ctx, req.MessageID, req.ReminderID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "reminder processed"})
		return
	}

	result, err := h.dispatchService.Dispatch(ctx, req.MessageID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if result == nil {
		// Deleted or still a draft; the timer is simply stale.
		c.JSON(http.StatusOK, gin.H{"message": "nothing to dispatch"})
		return
	}

	c.JSON(http.StatusOK, result)
}
