package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/autoparts-inventory/internal/core/service"
	"github.com/rl1809/autoparts-inventory/internal/logger"
)

const requestIDMetadataKey = "x-request-id"

type GRPCHandler struct {
	commands  *service.CommandService
	reconcile *service.ReconcileService
	parts     *service.PartService
	log       *zap.Logger
}

func NewGRPCHandler(
	commands *service.CommandService,
	reconcile *service.ReconcileService,
	parts *service.PartService,
	log *zap.Logger,
) *GRPCHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &GRPCHandler{commands: commands, reconcile: reconcile, parts: parts, log: log}
}

func (h *GRPCHandler) ProcessCommand(ctx context.Context, req *ProcessCommandRequest) (*ProcessCommandResponse, error) {
	res, err := h.commands.ProcessText(ctx, req.Command)
	if err != nil {
		return nil, h.status(ctx, err)
	}
	return &ProcessCommandResponse{Changes: nonNilChanges(res.Changes)}, nil
}

func (h *GRPCHandler) ExecuteChanges(ctx context.Context, req *ExecuteChangesRequest) (*ExecuteChangesResponse, error) {
	res, err := h.reconcile.Execute(ctx, toChangeSet(req.Changes), req.IdempotencyKey)
	if err != nil {
		return nil, h.status(ctx, err)
	}
	return &ExecuteChangesResponse{Success: res.Success, Outcomes: nonNilOutcomes(res.Outcomes)}, nil
}

func (h *GRPCHandler) ListParts(ctx context.Context, _ *ListPartsRequest) (*ListPartsResponse, error) {
	parts, err := h.parts.List(ctx)
	if err != nil {
		return nil, h.status(ctx, err)
	}
	return &ListPartsResponse{Parts: nonNilParts(parts)}, nil
}

func (h *GRPCHandler) UpdatePart(ctx context.Context, req *UpdatePartRequest) (*UpdatePartResponse, error) {
	if req.Quantity == nil {
		return nil, status.Error(codes.InvalidArgument, "quantity is required")
	}
	if err := h.parts.Update(ctx, req.toPart(req.ID)); err != nil {
		return nil, h.status(ctx, err)
	}
	return &UpdatePartResponse{Success: true}, nil
}

func (h *GRPCHandler) DeleteParts(ctx context.Context, req *DeletePartsRequest) (*DeletePartsResponse, error) {
	n, err := h.parts.Delete(ctx, req.IDs)
	if err != nil {
		return nil, h.status(ctx, err)
	}
	return &DeletePartsResponse{Success: true, Deleted: n}, nil
}

func (h *GRPCHandler) status(ctx context.Context, err error) error {
	kind, msg := classify(err)
	switch {
	case kind.code == CodeInternal:
		logger.FromContext(ctx, h.log).Error("rpc failed", zap.Error(err))
	case kind.grpcCode == codes.Unavailable:
		logger.FromContext(ctx, h.log).Warn("upstream failed", zap.Error(err))
	}
	return status.Error(kind.grpcCode, msg)
}

// UnaryServerInterceptor gives every call a request id (from the
// x-request-id metadata or generated) and logs its result.
func UnaryServerInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(requestIDMetadataKey); len(vals) > 0 {
				id = vals[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		ctx, reqLogger := logger.WithRequestID(ctx, log, id)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, id))

		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		switch code {
		case codes.OK:
			reqLogger.Info("gRPC request", fields...)
		case codes.Internal, codes.Unknown:
			reqLogger.Error("gRPC request", fields...)
		default:
			reqLogger.Warn("gRPC request", fields...)
		}
		return resp, err
	}
}

var _ InventoryCommandServer = (*GRPCHandler)(nil)
