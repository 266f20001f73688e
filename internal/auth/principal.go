package auth

import "context"

// Role 用户角色。
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleMember Role = "member"
)

// NormalizeRole 校验角色字符串，空值视为 RoleUser。
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case "":
		return RoleUser, true
	case RoleAdmin, RoleUser, RoleMember:
		return Role(value), true
	default:
		return "", false
	}
}

// Principal 调用方的已认证身份。
type Principal struct {
	Subject string
	Name    string
	Email   string
	Role    Role
}

// DisplayName 依次返回 Name、Email，都为空时返回 "User"。
func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	if p.Email != "" {
		return p.Email
	}
	return "User"
}

// Gate 解析当前调用方，返回 nil 表示未登录。
type Gate interface {
	CurrentPrincipal(ctx context.Context) *Principal
}

// ContextGate 读取 WithPrincipal 放入 context 的身份。
type ContextGate struct{}

func (ContextGate) CurrentPrincipal(ctx context.Context) *Principal {
	return PrincipalFromContext(ctx)
}

type contextKey string

const contextKeyPrincipal contextKey = "auth.principal"

// WithPrincipal 把身份写入 context。
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

// PrincipalFromContext 从 context 中取出身份。
func PrincipalFromContext(ctx context.Context) *Principal {
	if ctx == nil {
		return nil
	}
	if p, ok := ctx.Value(contextKeyPrincipal).(*Principal); ok {
		return p
	}
	return nil
}
