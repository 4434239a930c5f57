package grpcsvc

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/watermate/internal/service/idempotency"
)

const idempotencyKeyHeader = "idempotency-key"

// withIdempotency выполняет handler не больше одного раза на idempotency-key.
// Без ключа в metadata запрос выполняется как обычно.
func (s *MarketplaceService) withIdempotency(
	ctx context.Context,
	method string,
	req *structpb.Struct,
	handler func(context.Context) (*structpb.Struct, error),
) (*structpb.Struct, error) {
	key := readIdempotencyKey(ctx)
	if s.guard == nil || key == "" {
		resp, err := handler(ctx)
		return resp, toStatus(err)
	}

	reqHash, err := buildIdempotencyRequestHash(method, req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency request hash")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	body, replayed, err := s.guard.Do(ctx, key, method, reqHash, classifyFailure, func(ctx context.Context) ([]byte, error) {
		resp, err := handler(ctx)
		if err != nil {
			return nil, err
		}
		return protojson.Marshal(resp)
	})
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &structpb.Struct{}
	if err := protojson.Unmarshal(body, resp); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to decode cached idempotency response")
		return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
	}
	if replayed {
		s.logger.WithFields(log.Fields{"idempotency_key": key, "method": method}).Debug("idempotent replay")
	}
	return resp, nil
}

func classifyFailure(err error) idempotency.Failure {
	st := status.Convert(toStatus(err))
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}
	return idempotency.Failure{Code: int(code), Message: st.Message()}
}

func readIdempotencyKey(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(idempotencyKeyHeader); len(values) > 0 {
			if key := strings.TrimSpace(values[0]); key != "" {
				return key
			}
		}
	}
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		if values := md.Get(idempotencyKeyHeader); len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}

func buildIdempotencyRequestHash(method string, req *structpb.Struct) (string, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(req)
	if err != nil {
		return "", err
	}
	return idempotency.RequestHash(method, data), nil
}
