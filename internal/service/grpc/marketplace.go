package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName — полное имя gRPC-сервиса маркетплейса.
const ServiceName = "watermate.v1.Marketplace"

// Полные имена методов. Запросы и ответы передаются как google.protobuf.Struct в JSON-форме.
const (
	MethodCreateOrder              = "/" + ServiceName + "/CreateOrder"
	MethodGetOrder                 = "/" + ServiceName + "/GetOrder"
	MethodListOrders               = "/" + ServiceName + "/ListOrders"
	MethodUpdateOrderStatus        = "/" + ServiceName + "/UpdateOrderStatus"
	MethodUpdatePaymentStatus      = "/" + ServiceName + "/UpdatePaymentStatus"
	MethodCancelOrder              = "/" + ServiceName + "/CancelOrder"
	MethodPaymentSummary           = "/" + ServiceName + "/PaymentSummary"
	MethodListNotifications        = "/" + ServiceName + "/ListNotifications"
	MethodMarkNotificationRead     = "/" + ServiceName + "/MarkNotificationRead"
	MethodMarkAllNotificationsRead = "/" + ServiceName + "/MarkAllNotificationsRead"
	MethodRemoveNotification       = "/" + ServiceName + "/RemoveNotification"
	MethodLogin                    = "/" + ServiceName + "/Login"
	MethodVerifyOTP                = "/" + ServiceName + "/VerifyOTP"
	MethodLogout                   = "/" + ServiceName + "/Logout"
)

// MarketplaceServer — серверная сторона watermate.v1.Marketplace.
type MarketplaceServer interface {
	CreateOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateOrderStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdatePaymentStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PaymentSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListNotifications(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkNotificationRead(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkAllNotificationsRead(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveNotification(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyOTP(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(MarketplaceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MarketplaceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MarketplaceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func method(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{MethodName: name, Handler: unaryHandler("/"+ServiceName+"/"+name, call)}
}

// MarketplaceServiceDesc описывает сервис для grpc.Server.RegisterService.
var MarketplaceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketplaceServer)(nil),
	Methods: []grpc.MethodDesc{
		method("CreateOrder", MarketplaceServer.CreateOrder),
		method("GetOrder", MarketplaceServer.GetOrder),
		method("ListOrders", MarketplaceServer.ListOrders),
		method("UpdateOrderStatus", MarketplaceServer.UpdateOrderStatus),
		method("UpdatePaymentStatus", MarketplaceServer.UpdatePaymentStatus),
		method("CancelOrder", MarketplaceServer.CancelOrder),
		method("PaymentSummary", MarketplaceServer.PaymentSummary),
		method("ListNotifications", MarketplaceServer.ListNotifications),
		method("MarkNotificationRead", MarketplaceServer.MarkNotificationRead),
		method("MarkAllNotificationsRead", MarketplaceServer.MarkAllNotificationsRead),
		method("RemoveNotification", MarketplaceServer.RemoveNotification),
		method("Login", MarketplaceServer.Login),
		method("VerifyOTP", MarketplaceServer.VerifyOTP),
		method("Logout", MarketplaceServer.Logout),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterMarketplaceServer регистрирует реализацию на сервере.
func RegisterMarketplaceServer(s grpc.ServiceRegistrar, srv MarketplaceServer) {
	s.RegisterService(&MarketplaceServiceDesc, srv)
}

// MarketplaceClient — клиент watermate.v1.Marketplace.
type MarketplaceClient struct {
	cc grpc.ClientConnInterface
}

// NewMarketplaceClient создаёт клиента поверх соединения.
func NewMarketplaceClient(cc grpc.ClientConnInterface) *MarketplaceClient {
	return &MarketplaceClient{cc: cc}
}

// Call вызывает метод по полному имени.
func (c *MarketplaceClient) Call(ctx context.Context, fullMethod string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
