package grpcsvc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

type createOrderRequest struct {
	ClientID         string          `json:"clientId"`
	ShopID           string          `json:"shopId"`
	ClientName       string          `json:"clientName"`
	ClientPhone      string          `json:"clientPhone"`
	ShopName         string          `json:"shopName"`
	Litres           int             `json:"litres"`
	PaymentMethod    string          `json:"paymentMethod"`
	PaymentStatus    string          `json:"paymentStatus"`
	DeliveryLocation domain.Location `json:"deliveryLocation"`
	Notes            string          `json:"notes"`
}

func (r createOrderRequest) toInput() domain.CreateOrderInput {
	return domain.CreateOrderInput{
		ClientID:         r.ClientID,
		ShopID:           r.ShopID,
		ClientName:       r.ClientName,
		ClientPhone:      r.ClientPhone,
		ShopName:         r.ShopName,
		Litres:           r.Litres,
		PaymentMethod:    domain.PaymentMethod(r.PaymentMethod),
		PaymentStatus:    domain.PaymentStatus(r.PaymentStatus),
		DeliveryLocation: r.DeliveryLocation,
		Notes:            r.Notes,
	}
}

type orderRequest struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	PaymentStatus  string `json:"paymentStatus"`
	TransactionRef string `json:"transactionRef"`
	Reason         string `json:"reason"`
}

type listOrdersRequest struct {
	ClientID      string `json:"clientId"`
	ShopID        string `json:"shopId"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	PaymentMethod string `json:"paymentMethod"`
	Query         string `json:"query"`
	Limit         int    `json:"limit"`
}

func (r listOrdersRequest) toFilter() domain.OrderFilter {
	return domain.OrderFilter{
		ClientID:      r.ClientID,
		ShopID:        r.ShopID,
		Status:        domain.OrderStatus(r.Status),
		PaymentStatus: domain.PaymentStatus(r.PaymentStatus),
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		Query:         r.Query,
		Limit:         r.Limit,
	}
}

type notificationRequest struct {
	NotificationID string `json:"notificationId"`
	UserID         string `json:"userId"`
	UnreadOnly     bool   `json:"unreadOnly"`
}

type credentialsRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type orderResponse struct {
	Order    domain.Order           `json:"order"`
	Timeline []domain.TimelineEvent `json:"timeline,omitempty"`
}

type ordersResponse struct {
	Orders []domain.Order `json:"orders"`
}

type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}

type updatedResponse struct {
	Updated int `json:"updated"`
}

// decodeRequest переводит Struct в типизированный запрос через JSON.
func decodeRequest(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

// encodeResponse переводит ответ в Struct через JSON.
func encodeResponse(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert response: %w", err)
	}
	return out, nil
}

func emptyResponse() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}
