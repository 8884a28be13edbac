package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/StrawberryNinjago/platformtriage/internal/kube"
	"github.com/StrawberryNinjago/platformtriage/internal/models"
	"github.com/StrawberryNinjago/platformtriage/internal/services"
)

// Diagnoser runs a triage. services.TriageService satisfies it.
type Diagnoser interface {
	Diagnose(ctx context.Context, req models.TriageRequest) (models.TriageResult, error)
}

// TriageHandler adapts a Diagnoser to the gRPC Triage service.
type TriageHandler struct {
	logger    *slog.Logger
	diagnoser Diagnoser
}

// NewTriageHandler constructs the gRPC handler.
func NewTriageHandler(logger *slog.Logger, diagnoser Diagnoser) *TriageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriageHandler{logger: logger, diagnoser: diagnoser}
}

// Diagnose implements TriageServer.
func (h *TriageHandler) Diagnose(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if h.diagnoser == nil {
		return nil, status.Error(codes.FailedPrecondition, "triage service not configured")
	}

	domainReq, err := FromStructRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := h.diagnoser.Diagnose(ctx, domainReq)
	if err != nil {
		return nil, statusFromError(err)
	}

	out, err := ToStructResult(result)
	if err != nil {
		h.logger.Error("encode triage result failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode result")
	}
	return out, nil
}

// FromStructRequest maps a request Struct into a TriageRequest. Unknown
// fields are rejected so typos surface instead of silently widening a query.
func FromStructRequest(req *structpb.Struct) (models.TriageRequest, error) {
	var out models.TriageRequest
	if req == nil {
		return out, fmt.Errorf("request is nil")
	}
	fields := req.GetFields()
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := fields[key]
		switch key {
		case "namespace", "selector", "release":
			s, ok := value.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return out, fmt.Errorf("%s must be a string", key)
			}
			switch key {
			case "namespace":
				out.Namespace = s.StringValue
			case "selector":
				out.Selector = s.StringValue
			case "release":
				out.Release = s.StringValue
			}
		case "eventLimit":
			n, ok := value.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return out, fmt.Errorf("eventLimit must be a number")
			}
			if n.NumberValue != math.Trunc(n.NumberValue) || n.NumberValue > math.MaxInt32 {
				return out, fmt.Errorf("eventLimit must be an integer")
			}
			if n.NumberValue < 0 {
				return out, fmt.Errorf("eventLimit must not be negative")
			}
			out.EventLimit = int(n.NumberValue)
		default:
			return out, fmt.Errorf("unknown field %q", key)
		}
	}
	return out, nil
}

// ToStructResult renders a TriageResult with its JSON field names.
func ToStructResult(result models.TriageResult) (*structpb.Struct, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert result: %w", err)
	}
	return out, nil
}

// ResultFromStruct decodes a Diagnose response back into a TriageResult.
func ResultFromStruct(s *structpb.Struct) (models.TriageResult, error) {
	var out models.TriageResult
	data, err := protojson.Marshal(s)
	if err != nil {
		return out, fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

func statusFromError(err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, kube.ErrInvalidSelector):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, services.ErrNotConfigured):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
