// Package scene exposes the scene store over gRPC as scene.v1.SceneStore.
//
// Messages use the protobuf well-known types: a project id travels as a
// StringValue and documents as a Struct holding the document JSON, so the
// service needs no generated code.
package scene

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name, also used for health.
const ServiceName = "scene.v1.SceneStore"

const (
	loadSceneMethod = "/" + ServiceName + "/LoadScene"
	saveSceneMethod = "/" + ServiceName + "/SaveScene"
)

// SceneStoreServer is the server API of scene.v1.SceneStore.
type SceneStoreServer interface {
	LoadScene(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SaveScene(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes scene.v1.SceneStore for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SceneStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LoadScene", Handler: loadSceneHandler},
		{MethodName: "SaveScene", Handler: saveSceneHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "scene/v1/scene.proto",
}

// RegisterSceneStoreServer registers srv on registrar.
func RegisterSceneStoreServer(registrar grpc.ServiceRegistrar, srv SceneStoreServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func loadSceneHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SceneStoreServer).LoadScene(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: loadSceneMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SceneStoreServer).LoadScene(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func saveSceneHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SceneStoreServer).SaveScene(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: saveSceneMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SceneStoreServer).SaveScene(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
