package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	tracerName       = "github.com/vladislavdragonenkov/watermate/internal/httpapi"
)

type createOrderRequest struct {
	ShopID           string          `json:"shopId" binding:"required"`
	Litres           int             `json:"litres" binding:"required"`
	PaymentMethod    string          `json:"paymentMethod" binding:"required"`
	PaymentStatus    string          `json:"paymentStatus"`
	ClientName       string          `json:"clientName"`
	ClientPhone      string          `json:"clientPhone"`
	DeliveryLocation domain.Location `json:"deliveryLocation"`
	Notes            string          `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type paymentRequest struct {
	PaymentStatus  string `json:"paymentStatus" binding:"required"`
	TransactionRef string `json:"transactionRef"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	Order    domain.Order           `json:"order"`
	Timeline []domain.TimelineEvent `json:"timeline,omitempty"`
}

func (h *Handler) createOrder(c *gin.Context) {
	user, _ := currentUser(c)

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req createOrderRequest
	if err := binding.JSON.BindBody(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := domain.CreateOrderInput{
		ClientID:         user.ID,
		ShopID:           req.ShopID,
		ClientName:       req.ClientName,
		ClientPhone:      req.ClientPhone,
		Litres:           req.Litres,
		PaymentMethod:    domain.PaymentMethod(req.PaymentMethod),
		PaymentStatus:    domain.PaymentStatus(req.PaymentStatus),
		DeliveryLocation: req.DeliveryLocation,
		Notes:            req.Notes,
	}
	if in.DeliveryLocation == (domain.Location{}) && user.Location != nil {
		in.DeliveryLocation = *user.Location
	}

	h.idempotent(c, http.StatusCreated, raw, func(ctx context.Context) (any, error) {
		ctx, span := otel.Tracer(tracerName).Start(ctx, "CreateOrder")
		defer span.End()
		span.SetAttributes(
			attribute.String("client_id", in.ClientID),
			attribute.String("shop_id", in.ShopID),
			attribute.Int("litres", in.Litres),
		)

		order, err := h.orders.CreateOrder(ctx, in)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		span.SetAttributes(attribute.String("order_id", order.ID))
		return orderResponse{Order: order}, nil
	})
}

func (h *Handler) getOrder(c *gin.Context) {
	order, ok := h.loadOrder(c, h.canView)
	if !ok {
		return
	}

	timeline, err := h.orders.Timeline(c.Request.Context(), order.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse{Order: order, Timeline: timeline})
}

func (h *Handler) listOrders(c *gin.Context) {
	user, _ := currentUser(c)

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := domain.OrderFilter{
		ClientID:      c.Query("clientId"),
		ShopID:        c.Query("shopId"),
		Status:        domain.OrderStatus(c.Query("status")),
		PaymentStatus: domain.PaymentStatus(c.Query("paymentStatus")),
		PaymentMethod: domain.PaymentMethod(c.Query("paymentMethod")),
		Query:         c.Query("q"),
		Limit:         limit,
	}

	var orders []domain.Order
	switch user.Role {
	case domain.RoleAdmin:
		orders, err = h.orders.List(c.Request.Context(), filter)
	case domain.RoleClient:
		filter.ClientID = user.ID
		orders, err = h.orders.List(c.Request.Context(), filter)
	case domain.RoleShop:
		orders, err = h.listShopOrders(c.Request.Context(), user, filter)
	default:
		err = errForbidden
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// listShopOrders ограничивает выборку магазинами владельца.
func (h *Handler) listShopOrders(ctx context.Context, user domain.User, filter domain.OrderFilter) ([]domain.Order, error) {
	if filter.ShopID != "" {
		if !h.ownsShop(user.ID, filter.ShopID) {
			return nil, fmt.Errorf("%w: shop %s", errForbidden, filter.ShopID)
		}
		return h.orders.List(ctx, filter)
	}

	var merged []domain.Order
	for _, shop := range h.shops.ShopsByOwner(user.ID) {
		filter.ShopID = shop.ID
		orders, err := h.orders.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		merged = append(merged, orders...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].OrderDate.After(merged[j].OrderDate)
	})
	if filter.Limit > 0 && len(merged) > filter.Limit {
		merged = merged[:filter.Limit]
	}
	return merged, nil
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, ok := h.loadOrder(c, h.canManage)
	if !ok {
		return
	}

	updated, err := h.orders.UpdateOrderStatus(c.Request.Context(), order.ID, domain.OrderStatus(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse{Order: updated})
}

func (h *Handler) updatePaymentStatus(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, ok := h.loadOrder(c, h.canManage)
	if !ok {
		return
	}

	updated, err := h.orders.UpdatePaymentStatus(c.Request.Context(), order.ID, domain.PaymentStatus(req.PaymentStatus), req.TransactionRef)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse{Order: updated})
}

func (h *Handler) cancelOrder(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req cancelRequest
	if len(raw) > 0 {
		if err := binding.JSON.BindBody(raw, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	order, ok := h.loadOrder(c, h.canView)
	if !ok {
		return
	}

	h.idempotent(c, http.StatusOK, raw, func(ctx context.Context) (any, error) {
		cancelled, err := h.orders.CancelOrder(ctx, order.ID, req.Reason)
		if err != nil {
			return nil, err
		}
		return orderResponse{Order: cancelled}, nil
	})
}

func (h *Handler) paymentSummary(c *gin.Context) {
	filter := domain.OrderFilter{
		ShopID:        c.Query("shopId"),
		ClientID:      c.Query("clientId"),
		PaymentMethod: domain.PaymentMethod(c.Query("paymentMethod")),
	}
	summary, err := h.orders.PaymentSummary(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// loadOrder читает заказ из пути и проверяет доступ. Чужой заказ выглядит как отсутствующий.
func (h *Handler) loadOrder(c *gin.Context, allowed func(domain.User, domain.Order) bool) (domain.Order, bool) {
	user, _ := currentUser(c)

	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return domain.Order{}, false
	}
	if !h.canView(user, order) {
		h.fail(c, domain.ErrOrderNotFound)
		return domain.Order{}, false
	}
	if !allowed(user, order) {
		h.fail(c, errForbidden)
		return domain.Order{}, false
	}
	return order, true
}

// canView — участник заказа или администратор.
func (h *Handler) canView(user domain.User, order domain.Order) bool {
	switch user.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleClient:
		return order.ClientID == user.ID
	case domain.RoleShop:
		return h.ownsShop(user.ID, order.ShopID)
	default:
		return false
	}
}

// canManage — владелец магазина заказа или администратор.
func (h *Handler) canManage(user domain.User, order domain.Order) bool {
	switch user.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleShop:
		return h.ownsShop(user.ID, order.ShopID)
	default:
		return false
	}
}

func (h *Handler) ownsShop(userID, shopID string) bool {
	shop, err := h.shops.GetShop(shopID)
	return err == nil && shop.OwnerID == userID
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}
