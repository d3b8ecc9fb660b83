package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignHMACSHA256 用给定密钥对字符串做 HMAC-SHA256 签名，返回 base64 结果
// Blob 存储的 SAS 签名使用 base64 编码的账户密钥
func SignHMACSHA256(base64Key, stringToSign string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
