package domain

// AccessCredential 访问邮箱的凭证，只有两种实现：
// AnonymousCapability（邮箱地址 + 邮箱令牌）与 OwnedSession（已登录用户）。
type AccessCredential interface {
	accessCredential()
}

// AnonymousCapability 匿名模式下凭邮箱令牌访问
type AnonymousCapability struct {
	Address string
	Token   string
}

// OwnedSession 已登录用户访问自己名下的邮箱
type OwnedSession struct {
	UserID string
}

func (AnonymousCapability) accessCredential() {}
func (OwnedSession) accessCredential()        {}
