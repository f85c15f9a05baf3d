package vo

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// maxSubjectLen 超过该长度的主体在配额键中以 sha256 表示，保证键能放进账本的索引列
const maxSubjectLen = 64

// IdentityClass 请求方身份类别
type IdentityClass string

const (
	IdentityGuest         IdentityClass = "guest"
	IdentityAuthenticated IdentityClass = "authenticated"
)

// Identity 请求方身份，Subject 为账号ID或匿名令牌
type Identity struct {
	Class   IdentityClass
	Subject string
	Plan    string
}

// NewGuestIdentity 创建访客身份
func NewGuestIdentity(token string) Identity {
	return Identity{Class: IdentityGuest, Subject: strings.TrimSpace(token)}
}

// NewAuthenticatedIdentity 创建登录用户身份
func NewAuthenticatedIdentity(subject, plan string) Identity {
	return Identity{Class: IdentityAuthenticated, Subject: strings.TrimSpace(subject), Plan: strings.TrimSpace(plan)}
}

// IsGuest 是否访客
func (i Identity) IsGuest() bool {
	return i.Class != IdentityAuthenticated
}

// QuotaKey 配额账本使用的身份键
func (i Identity) QuotaKey() string {
	class := i.Class
	if class == "" {
		class = IdentityGuest
	}
	subject := i.Subject
	switch {
	case subject == "":
		subject = "anonymous"
	case len(subject) > maxSubjectLen:
		sum := sha256.Sum256([]byte(subject))
		subject = "sha256:" + hex.EncodeToString(sum[:])
	}
	return string(class) + ":" + subject
}
