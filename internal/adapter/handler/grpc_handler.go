package handler

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/service"
)

const pharmacyServiceName = "pharmacy.v1.PharmacyService"

type QuantityRequest struct {
	ItemID int64 `json:"item_id"`
}

type QuantityResponse struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type ReceiveRequest struct {
	OrderID int64 `json:"order_id"`
}

type ScanRequest struct{}

type PharmacyServiceServer interface {
	CurrentQuantity(context.Context, *QuantityRequest) (*QuantityResponse, error)
	ReceivePurchaseOrder(context.Context, *ReceiveRequest) (*domain.PurchaseOrder, error)
	FinalizeInvoice(context.Context, *service.FinalizeInput) (*domain.SalesInvoice, error)
	ScanNotifications(context.Context, *ScanRequest) (*service.ScanResult, error)
}

type GRPCHandler struct {
	svc Services
	log logrus.FieldLogger
}

func NewGRPCHandler(svc Services, log logrus.FieldLogger) *GRPCHandler {
	return &GRPCHandler{svc: svc, log: log}
}

func RegisterPharmacyServiceServer(s grpc.ServiceRegistrar, srv PharmacyServiceServer) {
	s.RegisterService(&pharmacyServiceDesc, srv)
}

func (h *GRPCHandler) CurrentQuantity(ctx context.Context, req *QuantityRequest) (*QuantityResponse, error) {
	qty, err := h.svc.Ledger.Quantity(ctx, req.ItemID)
	if err != nil {
		return nil, h.toStatus("CurrentQuantity", err)
	}
	return &QuantityResponse{ItemID: req.ItemID, Quantity: qty}, nil
}

func (h *GRPCHandler) ReceivePurchaseOrder(ctx context.Context, req *ReceiveRequest) (*domain.PurchaseOrder, error) {
	po, err := h.svc.Orders.Receive(ctx, req.OrderID)
	if err != nil {
		return nil, h.toStatus("ReceivePurchaseOrder", err)
	}
	return po, nil
}

func (h *GRPCHandler) FinalizeInvoice(ctx context.Context, req *service.FinalizeInput) (*domain.SalesInvoice, error) {
	inv, err := h.svc.Sales.Finalize(ctx, *req)
	if err != nil {
		return nil, h.toStatus("FinalizeInvoice", err)
	}
	return inv, nil
}

func (h *GRPCHandler) ScanNotifications(ctx context.Context, _ *ScanRequest) (*service.ScanResult, error) {
	res, err := h.svc.Notifications.Scan(ctx)
	if err != nil {
		return nil, h.toStatus("ScanNotifications", err)
	}
	return &res, nil
}

func (h *GRPCHandler) toStatus(method string, err error) error {
	var code codes.Code
	switch domain.Kind(err) {
	case domain.KindValidation:
		code = codes.InvalidArgument
	case domain.KindNotFound:
		code = codes.NotFound
	case domain.KindState:
		code = codes.FailedPrecondition
	case domain.KindIntegrity:
		code = codes.ResourceExhausted
	case domain.KindTransaction:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	if code == codes.Internal || code == codes.Unavailable {
		if h.log != nil {
			h.log.WithField("method", method).WithError(err).Error("GRPC:REQUEST_FAILED")
		}
		return status.Error(code, code.String())
	}
	return status.Error(code, err.Error())
}

func unaryHandler[Req any, Resp any](method string, call func(PharmacyServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PharmacyServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + pharmacyServiceName + "/" + method,
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(PharmacyServiceServer), ctx, req.(*Req))
		})
	}
}

var pharmacyServiceDesc = grpc.ServiceDesc{
	ServiceName: pharmacyServiceName,
	HandlerType: (*PharmacyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CurrentQuantity",
			Handler:    unaryHandler("CurrentQuantity", PharmacyServiceServer.CurrentQuantity),
		},
		{
			MethodName: "ReceivePurchaseOrder",
			Handler:    unaryHandler("ReceivePurchaseOrder", PharmacyServiceServer.ReceivePurchaseOrder),
		},
		{
			MethodName: "FinalizeInvoice",
			Handler:    unaryHandler("FinalizeInvoice", PharmacyServiceServer.FinalizeInvoice),
		},
		{
			MethodName: "ScanNotifications",
			Handler:    unaryHandler("ScanNotifications", PharmacyServiceServer.ScanNotifications),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pharmacy.v1",
}

// PharmacyClient calls PharmacyService over any client connection.
type PharmacyClient struct {
	cc grpc.ClientConnInterface
}

func NewPharmacyClient(cc grpc.ClientConnInterface) *PharmacyClient {
	return &PharmacyClient{cc: cc}
}

func (c *PharmacyClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+pharmacyServiceName+"/"+method, in, out, opts...)
}

func (c *PharmacyClient) CurrentQuantity(ctx context.Context, in *QuantityRequest, opts ...grpc.CallOption) (*QuantityResponse, error) {
	out := new(QuantityResponse)
	if err := c.invoke(ctx, "CurrentQuantity", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PharmacyClient) ReceivePurchaseOrder(ctx context.Context, in *ReceiveRequest, opts ...grpc.CallOption) (*domain.PurchaseOrder, error) {
	out := new(domain.PurchaseOrder)
	if err := c.invoke(ctx, "ReceivePurchaseOrder", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PharmacyClient) FinalizeInvoice(ctx context.Context, in *service.FinalizeInput, opts ...grpc.CallOption) (*domain.SalesInvoice, error) {
	out := new(domain.SalesInvoice)
	if err := c.invoke(ctx, "FinalizeInvoice", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PharmacyClient) ScanNotifications(ctx context.Context, opts ...grpc.CallOption) (*service.ScanResult, error) {
	out := new(service.ScanResult)
	if err := c.invoke(ctx, "ScanNotifications", &ScanRequest{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
