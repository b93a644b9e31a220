package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// 随机串长度
const (
	TokenLength        = 32
	MinLocalPartLength = 8
	MaxLocalPartLength = 12
)

// RandomString 生成指定长度的小写字母数字随机串（crypto/rand，无模偏差）
func RandomString(length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// NewToken 生成会话或邮箱访问令牌
func NewToken() (string, error) {
	return RandomString(TokenLength)
}

// NewLocalPart 生成 8-12 位的邮箱本地部分
func NewLocalPart() (string, error) {
	span := big.NewInt(MaxLocalPartLength - MinLocalPartLength + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return RandomString(MinLocalPartLength + int(n.Int64()))
}
