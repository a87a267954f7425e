package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutSubscription registers or replaces the acting user's push endpoint.
func (h *Handler) PutSubscription(c *gin.Context) {
	ec, ok := h.subscriber(c)
	if !ok {
		return
	}
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subscription := model.PushSubscription{
		Endpoint:  req.Endpoint,
		UserID:    ec.ActorID,
		P256DH:    req.P256DH,
		Auth:      req.Auth,
		CreatedAt: ec.Now(),
	}
	if err := h.Store.UpsertSubscription(c.Request.Context(), &subscription); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	if _, ok := h.subscriber(c); !ok {
		return
	}
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscriptions lists the endpoints registered for the acting user.
func (h *Handler) GetSubscriptions(c *gin.Context) {
	ec, ok := h.subscriber(c)
	if !ok {
		return
	}
	subs, err := h.Store.SubscriptionsForUsers(c.Request.Context(), []int64{ec.ActorID})
	if err != nil {
		respondError(c, err)
		return
	}

	endpoints := make([]string, len(subs))
	for i, sub := range subs {
		endpoints[i] = sub.Endpoint
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": endpoints})
}

// subscriber requires a user; the system has nowhere to be notified.
func (h *Handler) subscriber(c *gin.Context) (execution.Context, bool) {
	ec, ok := h.actor(c)
	if !ok {
		return ec, false
	}
	if ec.ActorID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": UserIDHeader + " is required"})
		return ec, false
	}
	return ec, true
}
