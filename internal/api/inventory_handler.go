package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/middleware"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/resp"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/service"
)

// InventoryHandler 处理库存设置与流水查询请求
type InventoryHandler struct {
	inventoryService service.InventoryService
	logger           *zap.Logger
}

// NewInventoryHandler 创建库存处理器
func NewInventoryHandler(inventoryService service.InventoryService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// UpsertInventory 将在库数量设置为绝对值，记录不存在时创建
// PUT /api/v1/inventory
func (h *InventoryHandler) UpsertInventory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.UpsertInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.ProductID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "product_id is required", reqID, "")
		return
	}

	inventory, err := h.inventoryService.SetQuantity(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "upsert inventory", err)
		return
	}

	resp.OK(w, inventory, reqID, "")
}

// GetInventory 按商品与规格查询库存
// GET /api/v1/inventory?product_id=&variant_id=
func (h *InventoryHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product_id", reqID, "")
		return
	}

	var variantID *int64
	if raw := r.URL.Query().Get("variant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid variant_id", reqID, "")
			return
		}
		variantID = &id
	}

	inventory, err := h.inventoryService.GetByKey(productID, variantID)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "get inventory", err)
		return
	}

	resp.OK(w, inventory, reqID, "")
}

// ListInventoryLogs 分页查询某条库存的变动流水
// GET /api/v1/inventory/{id}/logs?page=&page_size=
func (h *InventoryHandler) ListInventoryLogs(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid inventory ID", reqID, "")
		return
	}

	result, err := h.inventoryService.ListLogs(&domain.InventoryLogListRequest{
		InventoryID: id,
		Page:        queryInt(r, "page", 1),
		PageSize:    queryInt(r, "page_size", 20),
	})
	if err != nil {
		writeServiceError(w, h.logger, reqID, "list inventory logs", err)
		return
	}

	resp.OK(w, result, reqID, "")
}
