package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "dice.v1.Dice"

	Dice_Transform_FullMethodName = "/dice.v1.Dice/Transform"
	Dice_GetParams_FullMethodName = "/dice.v1.Dice/GetParams"
	Dice_SetParams_FullMethodName = "/dice.v1.Dice/SetParams"
)

// DiceServer is the server API for the dice.v1.Dice service. Messages are
// protobuf well-known types so no generated code is needed.
type DiceServer interface {
	// Transform takes a flat list of 1-based (row, col) numbers and returns
	// the active cells of the model response in the same form.
	Transform(context.Context, *structpb.ListValue) (*structpb.ListValue, error)
	GetParams(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// SetParams applies the fields present in the request and returns the
	// resulting parameters.
	SetParams(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterDiceServer registers srv with s.
func RegisterDiceServer(s grpc.ServiceRegistrar, srv DiceServer) {
	s.RegisterService(&Dice_ServiceDesc, srv)
}

func _Dice_Transform_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.ListValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiceServer).Transform(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Dice_Transform_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DiceServer).Transform(ctx, req.(*structpb.ListValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Dice_GetParams_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiceServer).GetParams(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Dice_GetParams_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DiceServer).GetParams(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Dice_SetParams_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiceServer).SetParams(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Dice_SetParams_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DiceServer).SetParams(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Dice_ServiceDesc is the grpc.ServiceDesc for the dice.v1.Dice service.
var Dice_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transform", Handler: _Dice_Transform_Handler},
		{MethodName: "GetParams", Handler: _Dice_GetParams_Handler},
		{MethodName: "SetParams", Handler: _Dice_SetParams_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dice/v1/dice.proto",
}

// DiceClient is the client API for the dice.v1.Dice service.
type DiceClient interface {
	Transform(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*structpb.ListValue, error)
	GetParams(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	SetParams(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type diceClient struct {
	cc grpc.ClientConnInterface
}

func NewDiceClient(cc grpc.ClientConnInterface) DiceClient {
	return &diceClient{cc}
}

func (c *diceClient) Transform(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, Dice_Transform_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *diceClient) GetParams(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Dice_GetParams_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *diceClient) SetParams(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Dice_SetParams_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
