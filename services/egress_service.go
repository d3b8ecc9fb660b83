package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pso-monitor-service/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Egress 任务状态常量，与媒体出口服务器的上报值一致
const (
	EgressStatusStarting = "EGRESS_STARTING"
	EgressStatusActive   = "EGRESS_ACTIVE"
	EgressStatusEnding   = "EGRESS_ENDING"
	EgressStatusComplete = "EGRESS_COMPLETE"
	EgressStatusFailed   = "EGRESS_FAILED"
	EgressStatusAborted  = "EGRESS_ABORTED"
)

// EgressStartResult 开始录像的返回
type EgressStartResult struct {
	EgressID  string `json:"egress_id"`
	ObjectKey string `json:"object_key"` // 录像文件在 Blob 存储中的路径
}

// EgressInfo 出口服务器侧的任务信息
type EgressInfo struct {
	EgressID     string `json:"egress_id"`
	RoomName     string `json:"room_name"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail,omitempty"`
	Error        string `json:"error,omitempty"`
	FileURL      string `json:"file_url,omitempty"`
}

// EgressStopResult 停止录像的返回
type EgressStopResult struct {
	Info    *EgressInfo `json:"info"`
	BlobURL string      `json:"blob_url,omitempty"`
}

// EgressErrorDetails 出口服务器错误载荷的规范化结果
// 服务器返回的错误体字段不固定，在客户端边界统一抽取一次，下游只看这个结构
type EgressErrorDetails struct {
	HTTPCode     int    `json:"http_code"`
	Status       string `json:"status,omitempty"`
	StatusDetail string `json:"status_detail,omitempty"`
	ErrorMessage string `json:"error,omitempty"`
}

// EgressAPIError 出口服务器调用失败
type EgressAPIError struct {
	Operation string
	Details   EgressErrorDetails
}

func (e *EgressAPIError) Error() string {
	if e.Details.ErrorMessage != "" {
		return fmt.Sprintf("egress %s 失败 (HTTP %d): %s", e.Operation, e.Details.HTTPCode, e.Details.ErrorMessage)
	}
	return fmt.Sprintf("egress %s 失败 (HTTP %d)", e.Operation, e.Details.HTTPCode)
}

// extractEgressErrorDetails 在客户端边界把异构的错误体规范化成固定结构
func extractEgressErrorDetails(httpCode int, body []byte) EgressErrorDetails {
	details := EgressErrorDetails{HTTPCode: httpCode}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		details.ErrorMessage = strings.TrimSpace(string(body))
		return details
	}

	if v, ok := raw["status"].(string); ok {
		details.Status = v
	}
	if v, ok := raw["status_detail"].(string); ok {
		details.StatusDetail = v
	}
	if v, ok := raw["error"].(string); ok {
		details.ErrorMessage = v
	} else if v, ok := raw["message"].(string); ok {
		details.ErrorMessage = v
	}

	return details
}

// IsEgressNotFound 判断错误是否为「任务不存在/已无活跃任务」
// 停止时遇到这种错误按断连完成处理，远端任务已经消失
func IsEgressNotFound(err error) bool {
	apiErr, ok := err.(*EgressAPIError)
	if !ok {
		return false
	}
	if apiErr.Details.HTTPCode == http.StatusNotFound {
		return true
	}
	msg := strings.ToLower(apiErr.Details.ErrorMessage)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no active egress")
}

// IsEgressAlreadyFailed 判断错误是否为「任务已失败，无法停止」
func IsEgressAlreadyFailed(err error) bool {
	apiErr, ok := err.(*EgressAPIError)
	if !ok {
		return false
	}
	if apiErr.Details.Status == EgressStatusFailed || apiErr.Details.Status == EgressStatusAborted {
		return true
	}
	msg := strings.ToLower(apiErr.Details.ErrorMessage)
	return strings.Contains(msg, "already failed") || strings.Contains(msg, "cannot be stopped")
}

// InterfaceEgressService 媒体出口服务器客户端接口
type InterfaceEgressService interface {
	StartEgress(ctx context.Context, roomName, label string) (*EgressStartResult, error)
	StopEgress(ctx context.Context, egressID string) (*EgressStopResult, error)
	// GetEgressInfo 查询任务信息，任务已不存在时返回 (nil, nil)
	GetEgressInfo(ctx context.Context, egressID string) (*EgressInfo, error)
}

// EgressService 媒体出口服务器的HTTP客户端
type EgressService struct {
	Config     *config.Config
	HTTPClient *http.Client
}

// NewEgressService 创建出口服务器客户端
func NewEgressService(cfg *config.Config) InterfaceEgressService {
	return &EgressService{
		Config: cfg,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// accessToken 生成出口服务器API的访问令牌
// 使用 API 密钥对短期JWT做HMAC签名，出口服务器校验 video 授权声明
func (s *EgressService) accessToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": s.Config.EgressAPIKey,
		"nbf": now.Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
		"jti": uuid.New().String(),
		"video": map[string]interface{}{
			"roomRecord": true,
			"roomAdmin":  true,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.Config.EgressAPISecret))
	if err != nil {
		return "", fmt.Errorf("生成egress访问令牌失败: %w", err)
	}
	return signed, nil
}

// doRequest 发送一次带签名的请求并处理错误体
func (s *EgressService) doRequest(ctx context.Context, method, path string, payload interface{}, operation string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(s.Config.EgressAPIURL, "/")+path, body)
	if err != nil {
		return nil, err
	}

	token, err := s.accessToken()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, &ExternalServiceError{Service: "egress", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExternalServiceError{Service: "egress", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &EgressAPIError{
			Operation: operation,
			Details:   extractEgressErrorDetails(resp.StatusCode, respBody),
		}
	}

	return respBody, nil
}

// StartEgress 请求出口服务器开始录制指定房间
func (s *EgressService) StartEgress(ctx context.Context, roomName, label string) (*EgressStartResult, error) {
	payload := map[string]interface{}{
		"room_name": roomName,
		"label":     label,
	}

	body, err := s.doRequest(ctx, http.MethodPost, "/api/egress/start", payload, "start")
	if err != nil {
		return nil, err
	}

	var result EgressStartResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ExternalServiceError{Service: "egress", Err: fmt.Errorf("解析start响应失败: %w", err)}
	}
	return &result, nil
}

// StopEgress 请求出口服务器停止录制
func (s *EgressService) StopEgress(ctx context.Context, egressID string) (*EgressStopResult, error) {
	payload := map[string]interface{}{
		"egress_id": egressID,
	}

	body, err := s.doRequest(ctx, http.MethodPost, "/api/egress/stop", payload, "stop")
	if err != nil {
		return nil, err
	}

	var result EgressStopResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ExternalServiceError{Service: "egress", Err: fmt.Errorf("解析stop响应失败: %w", err)}
	}
	return &result, nil
}

// GetEgressInfo 查询任务当前状态，任务已不存在时返回 (nil, nil)
func (s *EgressService) GetEgressInfo(ctx context.Context, egressID string) (*EgressInfo, error) {
	body, err := s.doRequest(ctx, http.MethodGet, "/api/egress/info?egress_id="+egressID, nil, "info")
	if err != nil {
		if IsEgressNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var info EgressInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &ExternalServiceError{Service: "egress", Err: fmt.Errorf("解析info响应失败: %w", err)}
	}
	return &info, nil
}
