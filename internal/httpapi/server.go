// Package httpapi реализует HTTP/JSON шлюз маркетплейса на gin.
//
// Шлюз проверяет bearer-токен сессии и роль пользователя, а доменные операции
// отдаёт ledger'ам без изменений.
package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/vladislavdragonenkov/watermate/internal/directory"
	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/metrics"
	"github.com/vladislavdragonenkov/watermate/internal/service/idempotency"
	"github.com/vladislavdragonenkov/watermate/internal/service/session"
)

// DefaultServiceName — имя сервиса в трейсах HTTP-запросов.
const DefaultServiceName = "watermate-http"

// OrderLedger описывает операции ledger заказов, нужные шлюзу.
type OrderLedger interface {
	CreateOrder(ctx context.Context, in domain.CreateOrderInput) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus, transactionRef string) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) (domain.Order, error)
	Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error)
	PaymentSummary(ctx context.Context, filter domain.OrderFilter) (domain.PaymentSummary, error)
}

// Inbox — операции ledger уведомлений.
type Inbox interface {
	Get(ctx context.Context, id string) (domain.Notification, error)
	List(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	Remove(ctx context.Context, id string) error
}

// SessionGate отвечает за вход, проверку и отзыв токенов.
type SessionGate interface {
	Login(ctx context.Context, phone, otp string) (session.LoginResult, error)
	VerifyOTP(ctx context.Context, phone, otp string) (session.LoginResult, error)
	Authenticate(token string) (domain.User, error)
	Revoke(ctx context.Context, token string) error
}

// ShopCatalog — справочник магазинов.
type ShopCatalog interface {
	GetShop(id string) (domain.Shop, error)
	ShopsByOwner(ownerID string) []domain.Shop
	NearbyShops(at domain.Location) []directory.NearbyShop
}

// Handler обслуживает HTTP API.
type Handler struct {
	orders      OrderLedger
	inbox       Inbox
	gate        SessionGate
	shops       ShopCatalog
	guard       *idempotency.Guard
	metrics     *metrics.HTTPMetrics
	logger      *log.Entry
	serviceName string
}

// Option настраивает Handler.
type Option func(*Handler)

// WithGuard включает поддержку заголовка Idempotency-Key.
func WithGuard(guard *idempotency.Guard) Option {
	return func(h *Handler) {
		h.guard = guard
	}
}

// WithMetrics подключает метрики запросов.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithServiceName задаёт имя сервиса для трейсов.
func WithServiceName(name string) Option {
	return func(h *Handler) {
		if name != "" {
			h.serviceName = name
		}
	}
}

// NewHandler конструирует HTTP API.
func NewHandler(orders OrderLedger, inbox Inbox, gate SessionGate, shops ShopCatalog, opts ...Option) *Handler {
	h := &Handler{
		orders:      orders,
		inbox:       inbox,
		gate:        gate,
		shops:       shops,
		logger:      log.WithField("component", "http-api"),
		serviceName: DefaultServiceName,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router собирает gin.Engine со всеми маршрутами и middleware.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(h.serviceName))
	router.Use(requestLogger(h.logger))
	if h.metrics != nil {
		router.Use(requestMetrics(h.metrics))
	}

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/login", h.login)
	auth.POST("/verify", h.verifyOTP)
	auth.POST("/logout", h.authenticate(true), h.logout)

	api.GET("/shops/nearby", h.authenticate(false), h.nearbyShops)

	authed := api.Group("", h.authenticate(true))

	authed.GET("/orders", h.listOrders)
	authed.POST("/orders", requireRole(domain.RoleClient), h.createOrder)
	authed.GET("/orders/:id", h.getOrder)
	authed.PATCH("/orders/:id/status", requireRole(domain.RoleShop, domain.RoleAdmin), h.updateOrderStatus)
	authed.PATCH("/orders/:id/payment", requireRole(domain.RoleShop, domain.RoleAdmin), h.updatePaymentStatus)
	authed.POST("/orders/:id/cancel", h.cancelOrder)

	authed.GET("/notifications", h.listNotifications)
	authed.POST("/notifications/read-all", h.markAllNotificationsRead)
	authed.POST("/notifications/:id/read", h.markNotificationRead)
	authed.DELETE("/notifications/:id", h.removeNotification)

	admin := authed.Group("/admin", requireRole(domain.RoleAdmin))
	admin.GET("/payments/summary", h.paymentSummary)

	return router
}
