package grpc

import (
	"context"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/service"
	"google.golang.org/grpc"
)

const adminServiceName = "rozetka.admin.v1.OrderAdmin"

var OrderAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*OrderAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: unary(func(s OrderAdminServer, ctx context.Context, in *OrderRequest) (any, error) { return s.GetOrder(ctx, in) })},
		{MethodName: "ListOrders", Handler: unary(func(s OrderAdminServer, ctx context.Context, in *ListOrdersRequest) (any, error) { return s.ListOrders(ctx, in) })},
		{MethodName: "MarkPaidCOD", Handler: unary(func(s OrderAdminServer, ctx context.Context, in *OrderRequest) (any, error) { return s.MarkPaidCOD(ctx, in) })},
		{MethodName: "MarkDelivered", Handler: unary(func(s OrderAdminServer, ctx context.Context, in *OrderRequest) (any, error) { return s.MarkDelivered(ctx, in) })},
		{MethodName: "DeleteOrder", Handler: unary(func(s OrderAdminServer, ctx context.Context, in *OrderRequest) (any, error) { return s.DeleteOrder(ctx, in) })},
		{MethodName: "GetOrderSummary", Handler: unary(func(s OrderAdminServer, ctx context.Context, in *SummaryRequest) (any, error) { return s.GetOrderSummary(ctx, in) })},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rozetka/admin/v1/order_admin",
}

func RegisterOrderAdminServer(s grpc.ServiceRegistrar, srv OrderAdminServer) {
	s.RegisterService(&OrderAdminServiceDesc, srv)
}

// unary adapts a typed call into a grpc.MethodHandler, the way generated
// code does for each method.
func unary[Req any](call func(OrderAdminServer, context.Context, *Req) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(OrderAdminServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(ctx)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func fullMethod(ctx context.Context) string {
	m, _ := grpc.Method(ctx)
	return m
}

// OrderAdminClient calls the admin service over a connection using the
// JSON codec.
type OrderAdminClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderAdminClient(cc grpc.ClientConnInterface) *OrderAdminClient {
	return &OrderAdminClient{cc: cc}
}

func (c *OrderAdminClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+adminServiceName+"/"+method, in, out, opts...)
}

func (c *OrderAdminClient) GetOrder(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*OrderReply, error) {
	out := new(OrderReply)
	if err := c.invoke(ctx, "GetOrder", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderAdminClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*service.OrderPage, error) {
	out := new(service.OrderPage)
	if err := c.invoke(ctx, "ListOrders", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderAdminClient) MarkPaidCOD(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*OrderReply, error) {
	out := new(OrderReply)
	if err := c.invoke(ctx, "MarkPaidCOD", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderAdminClient) MarkDelivered(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*StatusReply, error) {
	out := new(StatusReply)
	if err := c.invoke(ctx, "MarkDelivered", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderAdminClient) DeleteOrder(ctx context.Context, in *OrderRequest, opts ...grpc.CallOption) (*StatusReply, error) {
	out := new(StatusReply)
	if err := c.invoke(ctx, "DeleteOrder", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderAdminClient) GetOrderSummary(ctx context.Context, in *SummaryRequest, opts ...grpc.CallOption) (*domain.OrderSummary, error) {
	out := new(domain.OrderSummary)
	if err := c.invoke(ctx, "GetOrderSummary", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
