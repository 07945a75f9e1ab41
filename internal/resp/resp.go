// Package resp 提供统一的HTTP响应封装。
// 所有API响应都使用相同的信封结构，便于客户端解析与链路排查。
package resp

import (
	"encoding/json"
	"net/http"
)

// Code 业务响应码
type Code int

const (
	CodeOK            Code = 0
	CodeInvalidParam  Code = 40001
	CodeUnauthorized  Code = 40101
	CodeForbidden     Code = 40301
	CodeNotFound      Code = 40401
	CodeConflict      Code = 40901
	CodeTimeout       Code = 50401
	CodeInternalError Code = 50001
)

// Response 统一响应信封
type Response struct {
	Code      Code        `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// HTTPStatusFromCode 将业务码映射到HTTP状态码
func HTTPStatusFromCode(code Code) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON 按给定状态码写出JSON响应
func WriteJSON(w http.ResponseWriter, status int, body *Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK 写出成功响应
func OK(w http.ResponseWriter, data interface{}, requestID, traceID string) {
	WriteJSON(w, http.StatusOK, &Response{
		Code:      CodeOK,
		Message:   "ok",
		Data:      data,
		RequestID: requestID,
		TraceID:   traceID,
	})
}

// Created 写出资源创建成功响应
func Created(w http.ResponseWriter, data interface{}, requestID, traceID string) {
	WriteJSON(w, http.StatusCreated, &Response{
		Code:      CodeOK,
		Message:   "created",
		Data:      data,
		RequestID: requestID,
		TraceID:   traceID,
	})
}

// Error 写出错误响应
func Error(w http.ResponseWriter, status int, code Code, message, requestID, traceID string) {
	WriteJSON(w, status, &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		TraceID:   traceID,
	})
}
