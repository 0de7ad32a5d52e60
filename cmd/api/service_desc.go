package main

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "support.v1.SupportService"

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

// SupportServer is the server API for support.v1.SupportService.
type SupportServer interface {
	CreateChat(context.Context, *CreateChatRequest) (*ChatResponse, error)
	GetChat(context.Context, *GetChatRequest) (*ChatResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	MarkRead(context.Context, *ChatIDRequest) (*MarkReadResponse, error)
	CloseChat(context.Context, *ChatIDRequest) (*ChatResponse, error)
	ReopenChat(context.Context, *ChatIDRequest) (*ChatResponse, error)
	ListChats(*ListChatsRequest, grpc.ServerStream) error
	Watch(*WatchRequest, grpc.ServerStream) error
}

// unaryHandler adapts a typed method to grpc.MethodHandler, running the
// interceptor chain the same way generated code does.
func unaryHandler[Req, Resp any](method string, call func(SupportServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SupportServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SupportServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// serverStreamHandler reads the single request of a server-streaming method.
func serverStreamHandler[Req any](call func(SupportServer, *Req, grpc.ServerStream) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(Req)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return call(srv.(SupportServer), in, stream)
	}
}

var supportServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SupportServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateChat", Handler: unaryHandler("CreateChat", SupportServer.CreateChat)},
		{MethodName: "GetChat", Handler: unaryHandler("GetChat", SupportServer.GetChat)},
		{MethodName: "SendMessage", Handler: unaryHandler("SendMessage", SupportServer.SendMessage)},
		{MethodName: "MarkRead", Handler: unaryHandler("MarkRead", SupportServer.MarkRead)},
		{MethodName: "CloseChat", Handler: unaryHandler("CloseChat", SupportServer.CloseChat)},
		{MethodName: "ReopenChat", Handler: unaryHandler("ReopenChat", SupportServer.ReopenChat)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "ListChats", Handler: serverStreamHandler(SupportServer.ListChats), ServerStreams: true},
		{StreamName: "Watch", Handler: serverStreamHandler(SupportServer.Watch), ServerStreams: true},
	},
	Metadata: "support/v1/support.proto",
}

// registerService registers the SupportService on the given gRPC server.
func registerService(s grpc.ServiceRegistrar, srv SupportServer) {
	s.RegisterService(&supportServiceDesc, srv)
}
