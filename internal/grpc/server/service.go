package server

import (
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	ServiceName = "kami.events.v1.EventStream"
	// SubscribeMethod is the full method name clients open streams on.
	SubscribeMethod = "/" + ServiceName + "/Subscribe"
)

// EventStreamServer is the server API of kami.events.v1.EventStream:
//
//	service EventStream {
//	  rpc Subscribe(google.protobuf.Empty) returns (stream google.protobuf.Struct);
//	}
//
// Each streamed Struct is the JSON event envelope {"event", "data", "at"}.
type EventStreamServer interface {
	Subscribe(req *emptypb.Empty, stream grpc.ServerStream) error
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(emptypb.Empty)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(EventStreamServer).Subscribe(req, stream)
}

var EventStreamServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EventStreamServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "kami/events/v1/events.proto",
}

func RegisterEventStreamServer(s grpc.ServiceRegistrar, srv EventStreamServer) {
	s.RegisterService(&EventStreamServiceDesc, srv)
}
