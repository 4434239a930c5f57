// Package grpcsvc реализует gRPC-сервис watermate.v1.Marketplace поверх ledger'ов.
package grpcsvc

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/service/idempotency"
	"github.com/vladislavdragonenkov/watermate/internal/service/session"
)

const defaultListOrdersLimit = 100

// OrderLedger — операции ledger заказов, доступные через API.
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
	List(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	Remove(ctx context.Context, id string) error
}

// SessionGate отвечает за вход, выход и проверку токенов.
type SessionGate interface {
	Authenticator
	Login(ctx context.Context, phone, otp string) (session.LoginResult, error)
	VerifyOTP(ctx context.Context, phone, otp string) (session.LoginResult, error)
	Logout(ctx context.Context) error
}

// MarketplaceService реализует MarketplaceServer.
type MarketplaceService struct {
	orders OrderLedger
	inbox  Inbox
	gate   SessionGate
	guard  *idempotency.Guard
	logger *log.Entry
}

// NewMarketplaceService конструирует сервис. guard может быть nil: тогда idempotency-key игнорируется.
func NewMarketplaceService(orders OrderLedger, inbox Inbox, gate SessionGate, guard *idempotency.Guard, logger *log.Entry) *MarketplaceService {
	if logger == nil {
		logger = log.New().WithField("component", "marketplace-grpc")
	}
	return &MarketplaceService{
		orders: orders,
		inbox:  inbox,
		gate:   gate,
		guard:  guard,
		logger: logger,
	}
}

// CreateOrder оформляет заказ. Учитывает idempotency-key.
func (s *MarketplaceService) CreateOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req createOrderRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	return s.withIdempotency(ctx, MethodCreateOrder, in, func(ctx context.Context) (*structpb.Struct, error) {
		order, err := s.orders.CreateOrder(ctx, req.toInput())
		if err != nil {
			s.logger.WithError(err).WithField("shop_id", req.ShopID).Info("create order rejected")
			return nil, err
		}
		return encodeResponse(orderResponse{Order: order})
	})
}

// GetOrder возвращает заказ вместе с историей.
func (s *MarketplaceService) GetOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeOrderRequest(in)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	timeline, err := s.orders.Timeline(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.respond(orderResponse{Order: order, Timeline: timeline})
}

// ListOrders возвращает заказы под фильтр.
func (s *MarketplaceService) ListOrders(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listOrdersRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	filter := req.toFilter()
	if filter.Limit <= 0 {
		filter.Limit = defaultListOrdersLimit
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, toStatus(err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return s.respond(ordersResponse{Orders: orders})
}

// UpdateOrderStatus меняет статус доставки.
func (s *MarketplaceService) UpdateOrderStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeOrderRequest(in)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.UpdateOrderStatus(ctx, req.OrderID, domain.OrderStatus(req.Status))
	if err != nil {
		return nil, toStatus(err)
	}
	return s.respond(orderResponse{Order: order})
}

// UpdatePaymentStatus меняет статус оплаты.
func (s *MarketplaceService) UpdatePaymentStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeOrderRequest(in)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.UpdatePaymentStatus(ctx, req.OrderID, domain.PaymentStatus(req.PaymentStatus), req.TransactionRef)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.respond(orderResponse{Order: order})
}

// CancelOrder отменяет заказ. Учитывает idempotency-key.
func (s *MarketplaceService) CancelOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeOrderRequest(in)
	if err != nil {
		return nil, err
	}

	return s.withIdempotency(ctx, MethodCancelOrder, in, func(ctx context.Context) (*structpb.Struct, error) {
		order, err := s.orders.CancelOrder(ctx, req.OrderID, req.Reason)
		if err != nil {
			return nil, err
		}
		return encodeResponse(orderResponse{Order: order})
	})
}

// PaymentSummary возвращает сводку по оплатам.
func (s *MarketplaceService) PaymentSummary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listOrdersRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	summary, err := s.orders.PaymentSummary(ctx, req.toFilter())
	if err != nil {
		return nil, toStatus(err)
	}
	return s.respond(summary)
}

// ListNotifications возвращает уведомления пользователя и число непрочитанных.
func (s *MarketplaceService) ListNotifications(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req notificationRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	userID, err := resolveUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	list, err := s.inbox.List(ctx, userID, req.UnreadOnly)
	if err != nil {
		return nil, toStatus(err)
	}
	unread, err := s.inbox.UnreadCount(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return s.respond(notificationsResponse{Notifications: list, UnreadCount: unread})
}

// MarkNotificationRead помечает уведомление прочитанным.
func (s *MarketplaceService) MarkNotificationRead(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := decodeNotificationID(in)
	if err != nil {
		return nil, err
	}
	if err := s.inbox.MarkAsRead(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	return emptyResponse(), nil
}

// MarkAllNotificationsRead помечает прочитанными все уведомления пользователя.
func (s *MarketplaceService) MarkAllNotificationsRead(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req notificationRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	userID, err := resolveUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	updated, err := s.inbox.MarkAllAsRead(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.respond(updatedResponse{Updated: updated})
}

// RemoveNotification удаляет уведомление.
func (s *MarketplaceService) RemoveNotification(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := decodeNotificationID(in)
	if err != nil {
		return nil, err
	}
	if err := s.inbox.Remove(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	return emptyResponse(), nil
}

// Login начинает вход по телефону.
func (s *MarketplaceService) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req credentialsRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	result, err := s.gate.Login(ctx, req.Phone, req.OTP)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.respond(result)
}

// VerifyOTP подтверждает код и открывает сессию.
func (s *MarketplaceService) VerifyOTP(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req credentialsRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	result, err := s.gate.VerifyOTP(ctx, req.Phone, req.OTP)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.respond(result)
}

// Logout закрывает сессию.
func (s *MarketplaceService) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.gate.Logout(ctx); err != nil {
		return nil, toStatus(err)
	}
	return emptyResponse(), nil
}

func (s *MarketplaceService) respond(v any) (*structpb.Struct, error) {
	out, err := encodeResponse(v)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode response")
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func decodeOrderRequest(in *structpb.Struct) (orderRequest, error) {
	var req orderRequest
	if err := decodeRequest(in, &req); err != nil {
		return req, err
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" {
		return req, status.Error(codes.InvalidArgument, "orderId is required")
	}
	return req, nil
}

func decodeNotificationID(in *structpb.Struct) (string, error) {
	var req notificationRequest
	if err := decodeRequest(in, &req); err != nil {
		return "", err
	}
	id := strings.TrimSpace(req.NotificationID)
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "notificationId is required")
	}
	return id, nil
}

// resolveUserID берёт userId из запроса, иначе пользователя из токена.
func resolveUserID(ctx context.Context, requested string) (string, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested, nil
	}
	if user, ok := UserFromContext(ctx); ok {
		return user.ID, nil
	}
	return "", status.Error(codes.InvalidArgument, "userId is required")
}

var _ MarketplaceServer = (*MarketplaceService)(nil)
