package handler

import (
	"context"

	"google.golang.org/grpc"
)

const inventoryServiceName = "autoparts.v1.InventoryCommandService"

// InventoryCommandServer is the server API of autoparts.v1.InventoryCommandService.
type InventoryCommandServer interface {
	ProcessCommand(context.Context, *ProcessCommandRequest) (*ProcessCommandResponse, error)
	ExecuteChanges(context.Context, *ExecuteChangesRequest) (*ExecuteChangesResponse, error)
	ListParts(context.Context, *ListPartsRequest) (*ListPartsResponse, error)
	UpdatePart(context.Context, *UpdatePartRequest) (*UpdatePartResponse, error)
	DeleteParts(context.Context, *DeletePartsRequest) (*DeletePartsResponse, error)
}

func RegisterInventoryCommandServer(s grpc.ServiceRegistrar, srv InventoryCommandServer) {
	s.RegisterService(&inventoryCommandServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + inventoryServiceName + "/" + name
}

// unaryHandler adapts a typed server method to grpc.MethodHandler.
func unaryHandler[Req, Resp any](name string, call func(InventoryCommandServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InventoryCommandServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InventoryCommandServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var inventoryCommandServiceDesc = grpc.ServiceDesc{
	ServiceName: inventoryServiceName,
	HandlerType: (*InventoryCommandServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ProcessCommand",
			Handler:    unaryHandler("ProcessCommand", InventoryCommandServer.ProcessCommand),
		},
		{
			MethodName: "ExecuteChanges",
			Handler:    unaryHandler("ExecuteChanges", InventoryCommandServer.ExecuteChanges),
		},
		{
			MethodName: "ListParts",
			Handler:    unaryHandler("ListParts", InventoryCommandServer.ListParts),
		},
		{
			MethodName: "UpdatePart",
			Handler:    unaryHandler("UpdatePart", InventoryCommandServer.UpdatePart),
		},
		{
			MethodName: "DeleteParts",
			Handler:    unaryHandler("DeleteParts", InventoryCommandServer.DeleteParts),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "autoparts/v1/inventory.proto",
}

// InventoryCommandClient calls the service over a connection, always using
// the JSON codec.
type InventoryCommandClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryCommandClient(cc grpc.ClientConnInterface) *InventoryCommandClient {
	return &InventoryCommandClient{cc: cc}
}

func (c *InventoryCommandClient) ProcessCommand(ctx context.Context, in *ProcessCommandRequest, opts ...grpc.CallOption) (*ProcessCommandResponse, error) {
	out := new(ProcessCommandResponse)
	if err := c.invoke(ctx, "ProcessCommand", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryCommandClient) ExecuteChanges(ctx context.Context, in *ExecuteChangesRequest, opts ...grpc.CallOption) (*ExecuteChangesResponse, error) {
	out := new(ExecuteChangesResponse)
	if err := c.invoke(ctx, "ExecuteChanges", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryCommandClient) ListParts(ctx context.Context, in *ListPartsRequest, opts ...grpc.CallOption) (*ListPartsResponse, error) {
	out := new(ListPartsResponse)
	if err := c.invoke(ctx, "ListParts", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryCommandClient) UpdatePart(ctx context.Context, in *UpdatePartRequest, opts ...grpc.CallOption) (*UpdatePartResponse, error) {
	out := new(UpdatePartResponse)
	if err := c.invoke(ctx, "UpdatePart", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryCommandClient) DeleteParts(ctx context.Context, in *DeletePartsRequest, opts ...grpc.CallOption) (*DeletePartsResponse, error) {
	out := new(DeletePartsResponse)
	if err := c.invoke(ctx, "DeleteParts", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryCommandClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}
