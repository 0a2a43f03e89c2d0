// Package store 定义外部存储的只读接口：账户凭证、可交易币种、系统参数。
package store

import (
	"context"
	"strings"
)

const (
	// ModeAny 不区分账户类型
	ModeAny = ""
	// ModeUnified OKX v5 统一账户
	ModeUnified = "unified-account"
	// ModeClassic 非统一账户（OKX v3 经典账户）
	ModeClassic = "classic"
)

// AccountCredentials 交给会话后不再修改
type AccountCredentials struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	Passphrase string
}

// CredentialStore 只返回启用且未删除的账户
type CredentialStore interface {
	ListAccounts(ctx context.Context, exchange, mode string) ([]AccountCredentials, error)
}

type CurrencyStore interface {
	ListTradableCurrencies(ctx context.Context) ([]string, error)
}

type ParamStore interface {
	// MaintenanceEmails 运维邮箱，原始值以 ; 分隔
	MaintenanceEmails(ctx context.Context) ([]string, error)
}

// ParseEmails 拆分 ; 分隔的邮箱，忽略空项
func ParseEmails(raw string) []string {
	out := make([]string, 0)
	for _, s := range strings.Split(raw, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
