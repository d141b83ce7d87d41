package handler

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/grocery-store/internal/core/service"
)

const grpcTestSecret = "grpc-test-secret"

func newGRPCClient(t *testing.T, orders *service.OrderService, opts ...grpc.DialOption) *OrderServiceClient {
	t.Helper()
	return dialGRPC(t, orders, grpcTestSecret, append([]grpc.DialOption{WithSharedSecret(grpcTestSecret)}, opts...)...)
}

func dialGRPC(t *testing.T, orders *service.OrderService, serverSecret string, opts ...grpc.DialOption) *OrderServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(NewGRPCHandler(orders), serverSecret, zap.NewNop())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	opts = append([]grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient("passthrough:///bufnet", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewOrderServiceClient(conn)
}

func TestGRPC_OrderLifecycle(t *testing.T) {
	env := newTestEnv(t, HTTPConfig{})
	env.register("admin", true)
	env.register("gina", false)
	admin := env.login("admin")
	eggs := env.seedProduct(admin, "Eggs", "4.99", 12)

	gina, _, err := env.svc.Auth.Login(context.Background(), "gina", testPassword)
	require.NoError(t, err)
	require.NoError(t, env.svc.Cart.Add(context.Background(), gina.ID, eggs, 2))

	client := newGRPCClient(t, env.svc.Orders)
	ctx := context.Background()

	placed, err := client.PlaceOrder(ctx, &PlaceOrderRequest{
		RequestID:       "grpc-1",
		UserID:          gina.ID,
		PaymentMethod:   "card",
		DeliveryAddress: "3 Oak Ave",
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", placed.Order.Status)
	require.Len(t, placed.Order.Items, 1)
	assert.Equal(t, "9.98", moneyString(placed.Order.Subtotal))

	_, err = client.PlaceOrder(ctx, &PlaceOrderRequest{
		RequestID:       "grpc-1",
		UserID:          gina.ID,
		PaymentMethod:   "card",
		DeliveryAddress: "3 Oak Ave",
	})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	got, err := client.GetOrder(ctx, &GetOrderRequest{OrderID: placed.Order.ID})
	require.NoError(t, err)
	assert.Equal(t, placed.Order.OrderNumber, got.Order.OrderNumber)

	_, err = client.GetOrder(ctx, &GetOrderRequest{OrderID: placed.Order.ID, UserID: gina.ID + 100})
	assert.Equal(t, codes.NotFound, status.Code(err))

	updated, err := client.UpdateOrderStatus(ctx, &UpdateOrderStatusRequest{
		OrderID: placed.Order.ID, Status: "confirmed",
	})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", updated.Order.Status)

	_, err = client.UpdateOrderStatus(ctx, &UpdateOrderStatusRequest{OrderID: placed.Order.ID, Status: "delivered"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGRPC_EmptyCart(t *testing.T) {
	env := newTestEnv(t, HTTPConfig{})
	env.register("hank", false)
	hank, _, err := env.svc.Auth.Login(context.Background(), "hank", testPassword)
	require.NoError(t, err)

	client := newGRPCClient(t, env.svc.Orders)
	_, err = client.PlaceOrder(context.Background(), &PlaceOrderRequest{
		UserID: hank.ID, PaymentMethod: "card", DeliveryAddress: "4 Pine Rd",
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGRPC_RequiresSharedSecret(t *testing.T) {
	env := newTestEnv(t, HTTPConfig{})
	env.register("ivy", false)
	ivy, _, err := env.svc.Auth.Login(context.Background(), "ivy", testPassword)
	require.NoError(t, err)
	ctx := context.Background()
	read := &GetOrderRequest{OrderID: 1}
	place := &PlaceOrderRequest{UserID: ivy.ID, PaymentMethod: "card", DeliveryAddress: "5 Elm St"}

	anonymous := dialGRPC(t, env.svc.Orders, grpcTestSecret)
	_, err = anonymous.GetOrder(ctx, read)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = anonymous.PlaceOrder(ctx, place)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = anonymous.UpdateOrderStatus(ctx, &UpdateOrderStatusRequest{OrderID: 1, Status: "cancelled"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	wrong := dialGRPC(t, env.svc.Orders, grpcTestSecret, WithSharedSecret("guess"))
	_, err = wrong.GetOrder(ctx, read)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	unconfigured := dialGRPC(t, env.svc.Orders, "", WithSharedSecret(""))
	_, err = unconfigured.GetOrder(ctx, read)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	trusted := newGRPCClient(t, env.svc.Orders)
	_, err = trusted.GetOrder(ctx, read)
	assert.Equal(t, codes.NotFound, status.Code(err))
}
