package cmd

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"media-pipeline-service/app"
	"media-pipeline-service/ddd/infrastructure/identity"
)

var (
	tokenSubject string
	tokenPlan    string
	tokenAnon    bool
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "用配置中的 jwt.secret 签发测试令牌",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenSubject == "" {
			return fmt.Errorf("--subject is required")
		}
		cfg, logService, err := app.Bootstrap(configPath)
		if err != nil {
			return err
		}
		defer logService.Close()
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is not configured")
		}

		now := time.Now()
		token, err := identity.NewJWTVerifier(cfg.JWT).Sign(identity.Claims{
			Plan: tokenPlan,
			Anon: tokenAnon,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   tokenSubject,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			},
		})
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "账号ID或匿名会话ID")
	tokenCmd.Flags().StringVar(&tokenPlan, "plan", "", "套餐名，对应 quota.plans")
	tokenCmd.Flags().BoolVar(&tokenAnon, "anon", false, "签发匿名访客令牌")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "有效期")
	rootCmd.AddCommand(tokenCmd)
}
