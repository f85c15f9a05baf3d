package gateway

import "media-pipeline-service/ddd/domain/vo"

// IdentityVerifier 校验身份凭证，无效凭证返回错误
type IdentityVerifier interface {
	Verify(token string) (vo.Identity, error)
}
