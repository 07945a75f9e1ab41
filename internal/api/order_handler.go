package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/middleware"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/resp"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/service"
)

// 列表查询中日期参数的格式
const dateLayout = "2006-01-02"

// OrderHandler 处理订单生命周期相关请求
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// CreateOrder 创建订单
// POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())

	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	order, err := h.orderService.Create(r.Context(), user, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "create order", err)
		return
	}

	resp.Created(w, order, reqID, "")
}

// GetOrder 获取订单详情。非员工用户只能查看自己的订单，
// 他人订单一律按不存在处理。
// GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	order, err := h.orderService.Get(id, user)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "get order", err)
		return
	}

	resp.OK(w, order, reqID, "")
}

// GetInvoice 下载订单发票文件。发票由后台任务在订单创建后生成，
// 尚未生成时按不存在处理。访问控制与订单详情一致。
// GET /api/v1/orders/{id}/invoice
func (h *OrderHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	order, err := h.orderService.Get(id, user)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "get invoice", err)
		return
	}
	if order.InvoicePath == nil || *order.InvoicePath == "" {
		resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "invoice not generated yet", reqID, "")
		return
	}

	filename := "invoice-" + order.OrderNumber + filepath.Ext(*order.InvoicePath)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, *order.InvoicePath)
}

// ListOrders 订单列表查询。普通用户强制限定为本人订单，
// 员工可通过 user_id 参数查看任意用户。
// GET /api/v1/orders?page=&page_size=&status=&user_id=&from_date=&to_date=
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())

	req := &domain.OrderListRequest{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 20),
	}

	if user.CanManageOrders() {
		if raw := r.URL.Query().Get("user_id"); raw != "" {
			if userID, err := strconv.ParseInt(raw, 10, 64); err == nil {
				req.UserID = &userID
			}
		}
	} else {
		req.UserID = &user.ID
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.OrderStatus(raw)
		if !status.IsValid() {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order status", reqID, "")
			return
		}
		req.Status = &status
	}
	if raw := r.URL.Query().Get("from_date"); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid from_date", reqID, "")
			return
		}
		req.FromDate = &from
	}
	if raw := r.URL.Query().Get("to_date"); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid to_date", reqID, "")
			return
		}
		// 含当天整天
		to = to.Add(24*time.Hour - time.Nanosecond)
		req.ToDate = &to
	}

	result, err := h.orderService.List(req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "list orders", err)
		return
	}

	resp.OK(w, result, reqID, "")
}

// CancelOrder 取消订单并返还库存
// POST /api/v1/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	order, err := h.orderService.Cancel(r.Context(), id, user)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "cancel order", err)
		return
	}

	resp.OK(w, order, reqID, "")
}

// UpdateOrderStatus 推进订单状态，仅员工可操作
// PUT /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	var req domain.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if !req.Status.IsValid() {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order status", reqID, "")
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "update order status", err)
		return
	}

	resp.OK(w, order, reqID, "")
}
