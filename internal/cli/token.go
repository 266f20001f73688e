package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wwwzy/medfleet/internal/auth"
)

var (
	tokenSubject string
	tokenName    string
	tokenEmail   string
	tokenRole    string
	tokenTTL     time.Duration
	tokenRaw     bool
)

// tokenCmd 使用配置中的密钥签发调试用的 JWT。
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发访问令牌（JWT）",
	Long:  `使用 auth.jwt_secret 签发 HS256 令牌，用于调用需要登录的接口。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, ok := auth.NormalizeRole(tokenRole)
		if !ok {
			return fmt.Errorf("未知角色: %s（可选 admin/user/member）", tokenRole)
		}
		ttl := tokenTTL
		if !cmd.Flags().Changed("ttl") {
			ttl = cfg.Auth.TokenTTL
		}

		p := auth.Principal{
			Subject: tokenSubject,
			Name:    tokenName,
			Email:   tokenEmail,
			Role:    role,
		}
		token, err := auth.IssueJWT(p, []byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, ttl)
		if err != nil {
			return fmt.Errorf("签发令牌失败: %w", err)
		}

		if tokenRaw {
			fmt.Println(token)
			return nil
		}

		expires := "永不过期"
		if ttl > 0 {
			expires = time.Now().Add(ttl).Format(time.RFC3339)
		}
		fmt.Println(renderPanel("访问令牌", []row{
			{label: "Subject", value: p.Subject},
			{label: "显示名", value: p.DisplayName()},
			{label: "角色", value: string(p.Role)},
			{label: "过期时间", value: expires},
		}))
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "用户唯一标识（必填）")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "显示名")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "邮箱")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "角色：admin/user/member，默认 user")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "有效期，默认使用 auth.token_ttl；0 表示不过期")
	tokenCmd.Flags().BoolVar(&tokenRaw, "raw", false, "只输出令牌本身")
	_ = tokenCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(tokenCmd)
}
