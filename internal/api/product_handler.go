package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/middleware"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/mq"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/resp"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/service"
)

// 上传的CSV文件大小上限
const maxImportFileSize = 10 << 20

// ProductHandler 处理商品目录与CSV导入相关请求
type ProductHandler struct {
	productService service.ProductService
	producer       *mq.Producer
	uploadDir      string
	logger         *zap.Logger
}

// NewProductHandler 创建商品处理器
func NewProductHandler(productService service.ProductService, producer *mq.Producer, uploadDir string, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		producer:       producer,
		uploadDir:      uploadDir,
		logger:         logger,
	}
}

// CreateProduct 创建商品，归属于当前登录的卖家
// POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())

	var req domain.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.Create(user.ID, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "create product", err)
		return
	}

	resp.Created(w, product, reqID, "")
}

// GetProduct 获取商品详情，附带库存信息
// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	product, err := h.productService.Get(id)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "get product", err)
		return
	}

	resp.OK(w, product, reqID, "")
}

// UpdateProduct 更新商品，仅商品归属卖家或管理员可操作
// PUT /api/v1/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	var req domain.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.Update(id, user, &req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "update product", err)
		return
	}

	resp.OK(w, product, reqID, "")
}

// DeleteProduct 软删除商品
// DELETE /api/v1/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	if err := h.productService.Delete(id, user); err != nil {
		writeServiceError(w, h.logger, reqID, "delete product", err)
		return
	}

	resp.OK(w, nil, reqID, "")
}

// ListProducts 商品列表查询
// GET /api/v1/products?page=&page_size=&vendor_id=&is_active=&keyword=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	req := &domain.ProductListRequest{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 20),
	}
	if raw := r.URL.Query().Get("vendor_id"); raw != "" {
		if vendorID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			req.VendorID = &vendorID
		}
	}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		if isActive, err := strconv.ParseBool(raw); err == nil {
			req.IsActive = &isActive
		}
	}
	if keyword := strings.TrimSpace(r.URL.Query().Get("keyword")); keyword != "" {
		req.Keyword = &keyword
	}

	result, err := h.productService.List(req)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "list products", err)
		return
	}

	resp.OK(w, result, reqID, "")
}

// CreateVariant 为商品新增规格
// POST /api/v1/products/{id}/variants
func (h *ProductHandler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	var variant domain.ProductVariant
	if err := json.NewDecoder(r.Body).Decode(&variant); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	created, err := h.productService.CreateVariant(id, user, &variant)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "create variant", err)
		return
	}

	resp.Created(w, created, reqID, "")
}

// ListVariants 列出商品的全部规格
// GET /api/v1/products/{id}/variants
func (h *ProductHandler) ListVariants(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	variants, err := h.productService.ListVariants(id)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "list variants", err)
		return
	}

	resp.OK(w, variants, reqID, "")
}

// ImportProducts 接收CSV文件，登记导入批次并投递后台任务。
// 文件先落盘再入队，消息只携带批次ID。
// POST /api/v1/products/import
func (h *ProductHandler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	user := middleware.UserFromContext(r.Context())

	if err := r.ParseMultipartForm(maxImportFileSize); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid multipart form", reqID, "")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "missing file field", reqID, "")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "only csv files are accepted", reqID, "")
		return
	}

	filePath, err := h.saveUpload(file)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "import products", err)
		return
	}

	imp, err := h.productService.CreateImport(user.ID, filePath)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "import products", err)
		return
	}

	body, err := json.Marshal(mq.ImportJob{ImportID: imp.ID})
	if err != nil {
		writeServiceError(w, h.logger, reqID, "import products", err)
		return
	}
	if err := h.producer.Publish(r.Context(), "", mq.ImportQueue, body, nil); err != nil {
		writeServiceError(w, h.logger, reqID, "import products", err)
		return
	}

	resp.Created(w, imp, reqID, "")
}

// GetImport 查询导入批次的进度与逐行错误
// GET /api/v1/products/imports/{id}
func (h *ProductHandler) GetImport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r, 5)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid import ID", reqID, "")
		return
	}

	imp, err := h.productService.GetImport(id)
	if err != nil {
		writeServiceError(w, h.logger, reqID, "get import", err)
		return
	}

	resp.OK(w, imp, reqID, "")
}

// saveUpload 将上传内容写入上传目录，文件名随机化避免冲突
func (h *ProductHandler) saveUpload(src io.Reader) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	filePath := filepath.Join(h.uploadDir, uuid.NewString()+".csv")
	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, maxImportFileSize)); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("save upload file: %w", err)
	}
	return filePath, nil
}
