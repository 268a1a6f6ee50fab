package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/fittrack/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// WhoAmI returns the caller's id, username and tier. The token alone is not
// enough: the account must still exist.
func (s *GRPCServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {

	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "unauthenticated")
		}
		s.logger.Error(ctx, "whoami failed", "user_id", userID, "error", err.Error())
		return nil, status.Error(codes.Internal, "internal error")
	}

	out, err := structpb.NewStruct(map[string]any{
		"user_id":  float64(user.ID),
		"username": user.Username,
		"tier":     string(user.Tier),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}

	return out, nil
}
