package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

func (h *Handler) listNotifications(c *gin.Context) {
	user, _ := currentUser(c)
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))

	items, err := h.inbox.List(c.Request.Context(), user.ID, unreadOnly)
	if err != nil {
		h.fail(c, err)
		return
	}
	unread, err := h.inbox.UnreadCount(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "unreadCount": unread})
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	id, ok := h.ownNotification(c)
	if !ok {
		return
	}
	if id != "" {
		if err := h.inbox.MarkAsRead(c.Request.Context(), id); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) markAllNotificationsRead(c *gin.Context) {
	user, _ := currentUser(c)

	updated, err := h.inbox.MarkAllAsRead(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *Handler) removeNotification(c *gin.Context) {
	id, ok := h.ownNotification(c)
	if !ok {
		return
	}
	if id != "" {
		if err := h.inbox.Remove(c.Request.Context(), id); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// ownNotification проверяет, что уведомление принадлежит пользователю.
// Неизвестный id — no-op: возвращается пустой id и ok=true.
func (h *Handler) ownNotification(c *gin.Context) (string, bool) {
	user, _ := currentUser(c)

	n, err := h.inbox.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "", true
	case err != nil:
		h.fail(c, err)
		return "", false
	case n.UserID != user.ID:
		h.fail(c, domain.ErrNotificationNotFound)
		return "", false
	}
	return n.ID, true
}
