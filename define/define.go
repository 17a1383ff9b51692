// Package define 全局共享的常量与 HTTP 响应外壳。
package define

// ApiResponse 所有 HTTP 接口统一的响应外壳
type ApiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ApiResponse.Status 的取值
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
