package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/service"
	"github.com/rl1809/grocery-store/internal/observability"
)

const orderServiceName = "grocery.v1.OrderService"

type PlaceOrderRequest struct {
	RequestID           string `json:"request_id"`
	UserID              int64  `json:"user_id"`
	CouponCode          string `json:"coupon_code"`
	PaymentMethod       string `json:"payment_method"`
	DeliveryAddress     string `json:"delivery_address"`
	DeliveryDate        string `json:"delivery_date"`
	DeliveryTimeSlot    string `json:"delivery_time_slot"`
	SpecialInstructions string `json:"special_instructions"`
}

// GetOrderRequest scopes the lookup to UserID when it is set; zero reads
// any order.
type GetOrderRequest struct {
	OrderID int64 `json:"order_id"`
	UserID  int64 `json:"user_id"`
}

type UpdateOrderStatusRequest struct {
	OrderID        int64  `json:"order_id"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
}

type OrderReply struct {
	Order orderDTO `json:"order"`
}

// OrderServiceServer is the server API of grocery.v1.OrderService.
type OrderServiceServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*OrderReply, error)
	GetOrder(context.Context, *GetOrderRequest) (*OrderReply, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*OrderReply, error)
}

type GRPCHandler struct {
	orderService *service.OrderService
}

var _ OrderServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(orderService *service.OrderService) *GRPCHandler {
	return &GRPCHandler{orderService: orderService}
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*OrderReply, error) {
	date, err := parseDeliveryDate(req.DeliveryDate)
	if err != nil {
		return nil, grpcError(err)
	}
	order, err := h.orderService.PlaceOrder(ctx, service.PlaceOrderInput{
		UserID:              req.UserID,
		CouponCode:          req.CouponCode,
		PaymentMethod:       domain.PaymentMethod(req.PaymentMethod),
		DeliveryAddress:     req.DeliveryAddress,
		DeliveryDate:        date,
		DeliveryTimeSlot:    req.DeliveryTimeSlot,
		SpecialInstructions: req.SpecialInstructions,
		IdempotencyKey:      req.RequestID,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return &OrderReply{Order: toOrder(order)}, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderReply, error) {
	order, err := h.orderService.GetOrder(ctx, req.UserID, req.UserID == 0, req.OrderID)
	if err != nil {
		return nil, grpcError(err)
	}
	return &OrderReply{Order: toOrder(order)}, nil
}

func (h *GRPCHandler) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderReply, error) {
	order, err := h.orderService.UpdateStatus(ctx, req.OrderID, domain.OrderStatus(req.Status), req.TrackingNumber)
	if err != nil {
		return nil, grpcError(err)
	}
	return &OrderReply{Order: toOrder(order)}, nil
}

func grpcError(err error) error {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "order not found")
	case errors.Is(err, domain.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, "duplicate request")
	case errors.Is(err, domain.ErrCartChanged):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrProductUnavailable),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrCouponExhausted),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrPaymentFailed):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// NewGRPCServer builds a server exposing h with request-scoped logging.
// Callers must present secret as a bearer token; an empty secret rejects
// every call.
func NewGRPCServer(h OrderServiceServer, secret string, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "grpc_server"))
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(
		loggingInterceptor(logger),
		authInterceptor(secret),
	)}, opts...)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&OrderServiceDesc, h)
	return srv
}

func loggingInterceptor(base *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		logger := base.With(zap.String("request_id", rid))
		ctx = observability.ContextWithLogger(ctx, logger)

		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc_access",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
		return resp, err
	}
}

func authInterceptor(secret string) grpc.UnaryServerInterceptor {
	want := []byte("Bearer " + secret)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if secret == "" {
			return nil, status.Error(codes.Unauthenticated, "grpc access is not configured")
		}
		md, _ := metadata.FromIncomingContext(ctx)
		got := md.Get("authorization")
		if len(got) != 1 || subtle.ConstantTimeCompare([]byte(got[0]), want) != 1 {
			return nil, status.Error(codes.Unauthenticated, "invalid credentials")
		}
		return handler(ctx, req)
	}
}

type sharedSecret string

func (s sharedSecret) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + string(s)}, nil
}

func (sharedSecret) RequireTransportSecurity() bool { return false }

// WithSharedSecret attaches secret to every call made on the connection.
func WithSharedSecret(secret string) grpc.DialOption {
	return grpc.WithPerRPCCredentials(sharedSecret(secret))
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PlaceOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/PlaceOrder"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).PlaceOrder(ctx, req.(*PlaceOrderRequest))
	})
}

func getOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/GetOrder"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).GetOrder(ctx, req.(*GetOrderRequest))
	})
}

func updateOrderStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpdateOrderStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).UpdateOrderStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/UpdateOrderStatus"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).UpdateOrderStatus(ctx, req.(*UpdateOrderStatusRequest))
	})
}

// OrderServiceDesc is registered by hand; messages travel as JSON.
var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
		{MethodName: "GetOrder", Handler: getOrderHandler},
		{MethodName: "UpdateOrderStatus", Handler: updateOrderStatusHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// OrderServiceClient calls grocery.v1.OrderService using the JSON codec.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+orderServiceName+"/"+method, in, out, opts...)
}

func (c *OrderServiceClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*OrderReply, error) {
	out := new(OrderReply)
	if err := c.invoke(ctx, "PlaceOrder", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderReply, error) {
	out := new(OrderReply)
	if err := c.invoke(ctx, "GetOrder", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*OrderReply, error) {
	out := new(OrderReply)
	if err := c.invoke(ctx, "UpdateOrderStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
