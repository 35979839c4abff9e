package transport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"groupsend/internal/entity"
	"groupsend/internal/service"
)

type MessageHandler struct {
	messageService  service.MessageService
	dispatchService service.DispatchService
}

func NewMessageHandler(messageService service.MessageService, dispatchService service.DispatchService) *MessageHandler {
	return &MessageHandler{
		messageService:  messageService,
		dispatchService: dispatchService,
	}
}

func (h *MessageHandler) CreateMessage(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Param("group_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var req service.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.GroupID = groupID
	req.UserID = currentUserID(c)

	message, err := h.messageService.CreateMessage(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

func (h *MessageHandler) GetGroupMessages(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Param("group_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	messages, err := h.messageService.GetGroupMessages(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *MessageHandler) GetMessage(c *gin.Context) {
	message, err := h.messageService.GetMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, message)
}

func (h *MessageHandler) UpdateMessage(c *gin.Context) {
	var req service.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.UserID = currentUserID(c)

	message, err := h.messageService.UpdateMessage(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, message)
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	if err := h.messageService.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}

// SendNow dispatches a scheduled message immediately instead of waiting
// for its timer. The timer that later fires finds the message settled
// and stops.
func (h *MessageHandler) SendNow(c *gin.Context) {
	result, err := h.dispatchService.Dispatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *MessageHandler) ReminderOptions(c *gin.Context) {
	at, err := time.Parse(time.RFC3339, c.Query("scheduled_at"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_at, expected RFC3339"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"options": h.messageService.ReminderOptions(at)})
}

// currentUserID reads the authenticated user id the gateway injects.
func currentUserID(c *gin.Context) int64 {
	id, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func respondError(c *gin.Context, err error) {
	var verr *entity.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	}

	switch {
	case errors.Is(err, entity.ErrMessageNotFound),
		errors.Is(err, entity.ErrGroupNotFound),
		errors.Is(err, entity.ErrMemberNotFound),
		errors.Is(err, entity.ErrReminderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrMessageNotEditable),
		errors.Is(err, entity.ErrMessageAlreadySent),
		errors.Is(err, entity.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrNoRecipients),
		errors.Is(err, entity.ErrNoChannelsEnabled),
		errors.Is(err, entity.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
