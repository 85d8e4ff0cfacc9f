package handler

import (
	"context"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/service"
)

func newGRPCClient(t *testing.T, svc Services) *PharmacyClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterPharmacyServiceServer(srv, NewGRPCHandler(svc, nil))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewPharmacyClient(conn)
}

func TestGRPC_InvoiceAndQuantity(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestServices(t)
	client := newGRPCClient(t, svc)

	cust, err := svc.Catalog.CreateCustomer(ctx, service.CreateCustomerInput{Name: "Jane"})
	require.NoError(t, err)
	item, err := svc.Catalog.CreateItem(ctx, service.CreateItemInput{Name: "Ibuprofen", Quantity: 3, UnitPrice: decimal.NewFromInt(4)})
	require.NoError(t, err)

	inv, err := client.FinalizeInvoice(ctx, &service.FinalizeInput{
		CustomerID: cust.ID,
		Lines:      []service.SaleLineInput{{ItemID: item.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "8", inv.GrandTotal.String())

	qty, err := client.CurrentQuantity(ctx, &QuantityRequest{ItemID: item.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, qty.Quantity)

	_, err = client.FinalizeInvoice(ctx, &service.FinalizeInput{
		CustomerID: cust.ID,
		Lines:      []service.SaleLineInput{{ItemID: item.ID, Quantity: 2}},
	})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	res, err := client.ScanNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created) // low stock plus the customer's balance
}

func TestGRPC_StatusCodes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestServices(t)
	client := newGRPCClient(t, svc)

	_, err := client.CurrentQuantity(ctx, &QuantityRequest{ItemID: 42})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.FinalizeInvoice(ctx, &service.FinalizeInput{CustomerID: 1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ReceivePurchaseOrder(ctx, &ReceiveRequest{OrderID: 7})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
