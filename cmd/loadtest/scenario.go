package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpcsvc "github.com/vladislavdragonenkov/watermate/internal/service/grpc"
)

const (
	idempotencyHeader   = "idempotency-key"
	authorizationHeader = "authorization"
)

// caller — часть grpcsvc.MarketplaceClient, нужная сценариям.
type caller interface {
	Call(ctx context.Context, fullMethod string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// step — вызов после создания заказа.
type step struct {
	method string
	// keyPrefix включает idempotency-key вида <prefix>-<run>-<index>.
	keyPrefix string
	body      map[string]any
}

// deliverySteps — статусы, которые магазин проходит после создания заказа.
var deliverySteps = []string{"confirmed", "preparing", "out_for_delivery", "delivered"}

// followUp возвращает шаги сценария для созданного заказа.
func followUp(cfg config, index int, orderID string) []step {
	switch cfg.mode {
	case modeCreateDeliver:
		steps := make([]step, 0, len(deliverySteps)+1)
		for _, st := range deliverySteps {
			steps = append(steps, step{
				method: grpcsvc.MethodUpdateOrderStatus,
				body:   map[string]any{"orderId": orderID, "status": st},
			})
		}
		return append(steps, step{
			method: grpcsvc.MethodUpdatePaymentStatus,
			body:   map[string]any{"orderId": orderID, "paymentStatus": "completed", "transactionRef": "LT-" + orderID},
		})
	case modeCreateCancel:
		if !cancelled(index, cfg.cancelRate) {
			return nil
		}
		return []step{{
			method:    grpcsvc.MethodCancelOrder,
			keyPrefix: "lt-cancel",
			body:      map[string]any{"orderId": orderID, "reason": "load-cancel"},
		}}
	case modeCreateTrack:
		return []step{{method: grpcsvc.MethodGetOrder, body: map[string]any{"orderId": orderID}}}
	}
	return nil
}

// cancelled выбирает каждый сценарий, у которого index%100 < rate.
func cancelled(index, rate int) bool {
	return index%100 < rate
}

// runScenario создаёт заказ и выполняет шаги режима; результат сценария пишется под scenarioKey.
func runScenario(ctx context.Context, cli caller, cfg config, index int, runID string, rec *recorder) (err error) {
	start := time.Now()
	defer func() { rec.observe(scenarioKey, time.Since(start), status.Code(err)) }()

	resp, err := invoke(ctx, cli, cfg.timeout, rec, grpcsvc.MethodCreateOrder, idempotencyKey("lt-create", runID, index), map[string]any{
		"clientId":      cfg.clientID,
		"shopId":        cfg.shopID,
		"litres":        cfg.litres,
		"paymentMethod": cfg.paymentMethod,
		"notes":         fmt.Sprintf("load %s #%d", runID, index),
	})
	if err != nil {
		return err
	}
	orderID := resp.GetFields()["order"].GetStructValue().GetFields()["id"].GetStringValue()
	if orderID == "" {
		return status.Error(codes.Internal, "create response returned empty order id")
	}

	for _, s := range followUp(cfg, index, orderID) {
		if _, err := invoke(ctx, cli, cfg.timeout, rec, s.method, idempotencyKey(s.keyPrefix, runID, index), s.body); err != nil {
			return err
		}
	}
	return nil
}

func idempotencyKey(prefix, runID string, index int) string {
	if prefix == "" {
		return ""
	}
	return fmt.Sprintf("%s-%s-%d", prefix, runID, index)
}

func signIn(ctx context.Context, cli caller, cfg config, rec *recorder) (string, error) {
	resp, err := invoke(ctx, cli, cfg.timeout, rec, grpcsvc.MethodVerifyOTP, "", map[string]any{
		"phone": cfg.phone,
		"otp":   cfg.otp,
	})
	if err != nil {
		return "", err
	}
	token := resp.GetFields()["token"].GetStringValue()
	if token == "" {
		return "", errors.New("verify otp returned empty token")
	}
	return token, nil
}

// invoke выполняет один вызов с таймаутом и записывает его под коротким именем метода.
func invoke(ctx context.Context, cli caller, timeout time.Duration, rec *recorder, fullMethod, key string, body map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(body)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "build request: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, idempotencyHeader, key)
	}

	start := time.Now()
	resp, err := cli.Call(ctx, fullMethod, req)
	rec.observe(methodName(fullMethod), time.Since(start), status.Code(err))
	return resp, err
}

func methodName(fullMethod string) string {
	return fullMethod[strings.LastIndex(fullMethod, "/")+1:]
}
