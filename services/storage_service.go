package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pso-monitor-service/config"
	"pso-monitor-service/utils"
)

// InterfaceStorageService 录像 Blob 存储接口
type InterfaceStorageService interface {
	// DeleteRecordingByPath 删除录像文件，文件不存在时返回 (false, nil)
	DeleteRecordingByPath(ctx context.Context, path string) (bool, error)
	// BuildHttpsURL 拼接录像文件的稳定HTTPS地址
	BuildHttpsURL(path string) string
	// GenerateReadSasURL 生成限时只读签名地址，有效期最少1分钟
	GenerateReadSasURL(path string, minutes int) (string, error)
}

// StorageService 基于共享密钥签名的 Blob 存储实现
type StorageService struct {
	Config     *config.Config
	HTTPClient *http.Client
}

// NewStorageService 创建 Blob 存储服务
func NewStorageService(cfg *config.Config) InterfaceStorageService {
	return &StorageService{
		Config: cfg,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BuildHttpsURL 拼接录像文件的稳定HTTPS地址
func (s *StorageService) BuildHttpsURL(path string) string {
	path = strings.TrimPrefix(path, "/")
	return fmt.Sprintf("%s/%s/%s", s.Config.GetBlobEndpoint(), s.Config.BlobContainer, path)
}

// GenerateReadSasURL 生成限时只读SAS地址
func (s *StorageService) GenerateReadSasURL(path string, minutes int) (string, error) {
	return s.generateSasURL(path, "r", minutes)
}

// generateSasURL 生成限时签名地址
// 签名串遵循共享密钥规范: 权限\n起始\n截止\n资源路径\n...\n版本\n资源类型
func (s *StorageService) generateSasURL(path, permissions string, minutes int) (string, error) {
	// 有效期下限1分钟，避免签出已过期的地址
	if minutes < 1 {
		minutes = 1
	}

	path = strings.TrimPrefix(path, "/")
	now := time.Now().UTC()
	start := now.Add(-5 * time.Minute).Format("2006-01-02T15:04:05Z")
	expiry := now.Add(time.Duration(minutes) * time.Minute).Format("2006-01-02T15:04:05Z")
	version := "2021-08-06"

	canonicalResource := fmt.Sprintf("/blob/%s/%s/%s", s.Config.BlobAccountName, s.Config.BlobContainer, path)
	stringToSign := strings.Join([]string{
		permissions,       // 权限
		start,             // 签名起始
		expiry,            // 签名截止
		canonicalResource, // 资源路径
		"",                // identifier
		"",                // IP范围
		"https",           // 协议
		version,           // 版本
		"b",               // 资源类型: blob
		"", "", "", "", "",
	}, "\n")

	signature, err := utils.SignHMACSHA256(s.Config.BlobAccountKey, stringToSign)
	if err != nil {
		return "", fmt.Errorf("生成SAS签名失败: %w", err)
	}

	query := url.Values{}
	query.Set("sv", version)
	query.Set("st", start)
	query.Set("se", expiry)
	query.Set("sr", "b")
	query.Set("sp", permissions)
	query.Set("spr", "https")
	query.Set("sig", signature)

	return s.BuildHttpsURL(path) + "?" + query.Encode(), nil
}

// DeleteRecordingByPath 删除录像文件
// 404 视为文件已不存在，返回 (false, nil)，其余错误照常返回
func (s *StorageService) DeleteRecordingByPath(ctx context.Context, path string) (bool, error) {
	sasURL, err := s.generateSasURL(path, "rd", 5)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, sasURL, nil)
	if err != nil {
		return false, err
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return false, &ExternalServiceError{Service: "blob", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		log.Printf("[Blob] 录像文件不存在: %s", path)
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		log.Printf("[Blob] 已删除录像文件: %s", path)
		return true, nil
	default:
		return false, &ExternalServiceError{Service: "blob", Err: fmt.Errorf("删除失败 (HTTP %d)", resp.StatusCode)}
	}
}
