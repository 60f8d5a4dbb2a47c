package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/booking-matcher/internal/logger"
)

const MatchingServiceName = "matching.v1.MatchingService"

// MatchingServiceServer: контракт сервиса. Сообщения, google.protobuf.Struct.
type MatchingServiceServer interface {
	RequestMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RespondToOffer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SweepExpiredOffers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FindCandidates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchCandidates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClaimBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompleteBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AssignmentHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structCall func(MatchingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call structCall) grpc.MethodDesc {
	fullMethod := "/" + MatchingServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MatchingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MatchingServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var MatchingServiceDesc = grpc.ServiceDesc{
	ServiceName: MatchingServiceName,
	HandlerType: (*MatchingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("RequestMatch", MatchingServiceServer.RequestMatch),
		unaryMethod("RespondToOffer", MatchingServiceServer.RespondToOffer),
		unaryMethod("SweepExpiredOffers", MatchingServiceServer.SweepExpiredOffers),
		unaryMethod("FindCandidates", MatchingServiceServer.FindCandidates),
		unaryMethod("SearchCandidates", MatchingServiceServer.SearchCandidates),
		unaryMethod("CancelBooking", MatchingServiceServer.CancelBooking),
		unaryMethod("ClaimBooking", MatchingServiceServer.ClaimBooking),
		unaryMethod("StartBooking", MatchingServiceServer.StartBooking),
		unaryMethod("CompleteBooking", MatchingServiceServer.CompleteBooking),
		unaryMethod("AssignmentHistory", MatchingServiceServer.AssignmentHistory),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matching/v1/matching.proto",
}

func RegisterMatchingServiceServer(s grpc.ServiceRegistrar, srv MatchingServiceServer) {
	s.RegisterService(&MatchingServiceDesc, srv)
}

// LoggingInterceptor пишет в лог каждый вызов: метод, код ответа, длительность.
func LoggingInterceptor(logg *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logg.WithFields(ctx, map[string]any{
			"request_id": uuid.NewString(),
			"method":     info.FullMethod,
		})
		started := time.Now()
		resp, err := handler(ctx, req)
		ctx = logg.WithFields(ctx, map[string]any{
			"code":        status.Code(err).String(),
			"duration_ms": time.Since(started).Milliseconds(),
		})
		if err != nil {
			logg.Error(ctx, "grpc call failed", err)
		} else {
			logg.Debug(ctx, "grpc call")
		}
		return resp, err
	}
}
