package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/errs"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/resp"
)

// writeServiceError 将服务层错误按类别映射为HTTP响应。
// 校验失败与未找到直接回传错误说明，其余错误只记日志不外泄细节。
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, reqID, action string, err error) {
	var code resp.Code
	message := err.Error()
	switch {
	case errors.Is(err, errs.ErrValidation):
		code = resp.CodeInvalidParam
	case errors.Is(err, errs.ErrNotFound):
		code = resp.CodeNotFound
	case errors.Is(err, errs.ErrConflict):
		code = resp.CodeConflict
	default:
		logger.Error(action+" failed", zap.String("request_id", reqID), zap.Error(err))
		code = resp.CodeInternalError
		message = action + " failed"
	}
	resp.Error(w, resp.HTTPStatusFromCode(code), code, message, reqID, "")
}

// pathID 从URL路径的指定段提取数字ID。
// 段序号按斜杠切分计数，如 /api/v1/orders/{id} 的ID在第4段。
func pathID(r *http.Request, index int) (int64, bool) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) <= index {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[index], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryInt 读取数字型查询参数，缺失或非法时返回默认值
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
