// Package autonomyv1 — gRPC-контракты контура автономии.
//
// Дескрипторы собраны вручную, без .proto-схемы и кодогенерации: обе
// стороны обмениваются произвольным JSON-объектом (google.protobuf.Struct),
// так что отдельные типы сообщений не нужны. Схема конвертов описана у
// адаптеров (internal/connectors) и у сервера (internal/engine).
//
// Сервисы:
//   - ExecutorService — внешние исполнители действий (мессенджер, договоры,
//     обогащение). Мы — клиент.
//   - GovernorService — проверка кандидата чужим сервисом до того, как он
//     потащит действие в очередь. Мы — сервер.
package autonomyv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ExecutorServiceName = "autonomy.v1.ExecutorService"
	GovernorServiceName = "autonomy.v1.GovernorService"

	ExecutorServiceExecuteMethod    = "/autonomy.v1.ExecutorService/Execute"
	GovernorServiceCanExecuteMethod = "/autonomy.v1.GovernorService/CanExecute"
	GovernorServiceValidateMethod   = "/autonomy.v1.GovernorService/Validate"
)

// --- ExecutorService (клиентская сторона) ---

type ExecutorServiceClient interface {
	Execute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type executorServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewExecutorServiceClient(cc grpc.ClientConnInterface) ExecutorServiceClient {
	return &executorServiceClient{cc: cc}
}

func (c *executorServiceClient) Execute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ExecutorServiceExecuteMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// --- ExecutorService (серверная сторона, для тестов и моков) ---

type ExecutorServiceServer interface {
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type UnimplementedExecutorServiceServer struct{}

func (UnimplementedExecutorServiceServer) Execute(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Execute not implemented")
}

func RegisterExecutorServiceServer(s grpc.ServiceRegistrar, srv ExecutorServiceServer) {
	s.RegisterService(&ExecutorService_ServiceDesc, srv)
}

func _ExecutorService_Execute_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExecutorServiceServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ExecutorServiceExecuteMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ExecutorServiceServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var ExecutorService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ExecutorServiceName,
	HandlerType: (*ExecutorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    _ExecutorService_Execute_Handler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

// --- GovernorService (серверная сторона) ---

type GovernorServiceServer interface {
	// CanExecute — только политический гейт, без конвейера
	CanExecute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Validate — полный цикл проверки кандидата
	Validate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type UnimplementedGovernorServiceServer struct{}

func (UnimplementedGovernorServiceServer) CanExecute(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CanExecute not implemented")
}

func (UnimplementedGovernorServiceServer) Validate(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Validate not implemented")
}

func RegisterGovernorServiceServer(s grpc.ServiceRegistrar, srv GovernorServiceServer) {
	s.RegisterService(&GovernorService_ServiceDesc, srv)
}

func _GovernorService_CanExecute_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GovernorServiceServer).CanExecute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GovernorServiceCanExecuteMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GovernorServiceServer).CanExecute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _GovernorService_Validate_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GovernorServiceServer).Validate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GovernorServiceValidateMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GovernorServiceServer).Validate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var GovernorService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: GovernorServiceName,
	HandlerType: (*GovernorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CanExecute",
			Handler:    _GovernorService_CanExecute_Handler,
		},
		{
			MethodName: "Validate",
			Handler:    _GovernorService_Validate_Handler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

// --- GovernorService (клиентская сторона, для смежных сервисов) ---

type GovernorServiceClient interface {
	CanExecute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Validate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type governorServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewGovernorServiceClient(cc grpc.ClientConnInterface) GovernorServiceClient {
	return &governorServiceClient{cc: cc}
}

func (c *governorServiceClient) CanExecute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GovernorServiceCanExecuteMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *governorServiceClient) Validate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GovernorServiceValidateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
