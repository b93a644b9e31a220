package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 参数
const (
	PasswordIterations = 100000
	PasswordSaltSize   = 16
	PasswordKeySize    = 32
)

// HashPassword 使用 PBKDF2-SHA256 派生密码哈希
//
// 返回格式为 base64(salt):base64(key)，盐值每次随机生成。
func HashPassword(password string) (string, error) {
	salt := make([]byte, PasswordSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, PasswordIterations, PasswordKeySize, sha256.New)
	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(key), nil
}

// VerifyPassword 校验密码与存储的哈希是否匹配
//
// 格式错误的哈希一律返回 false；比较使用常量时间。
func VerifyPassword(password, encoded string) bool {
	saltPart, keyPart, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil || len(salt) == 0 {
		return false
	}
	stored, err := base64.StdEncoding.DecodeString(keyPart)
	if err != nil || len(stored) != PasswordKeySize {
		return false
	}

	derived := pbkdf2.Key([]byte(password), salt, PasswordIterations, PasswordKeySize, sha256.New)
	return subtle.ConstantTimeCompare(derived, stored) == 1
}
