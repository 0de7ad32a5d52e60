package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/backup"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
)

// mapError converts a domain error into a gRPC status. Unknown errors are
// logged and reported as Internal without leaking details.
func mapError(logger *zap.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, data.ErrChatNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, data.ErrInvalidCategory),
		errors.Is(err, data.ErrInvalidRole),
		errors.Is(err, data.ErrEmptyMessage),
		errors.Is(err, backup.ErrInvalidPayload):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}

	logger.Error("request failed", zap.String("op", op), zap.Error(err))
	return status.Errorf(codes.Internal, "%s failed", op)
}
