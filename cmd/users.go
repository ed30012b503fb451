package cmd

import (
	"fmt"

	"Romaly/core/account"
	"Romaly/core/auth"
	"Romaly/server"

	"github.com/spf13/cobra"
)

// openAccounts 只连数据库和资源存储，不启动HTTP
func openAccounts(cmd *cobra.Command) (*account.Service, func(), error) {
	repos, closeDB, err := server.OpenRepositories(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	assets, err := server.OpenAssets(cmd.Context(), cfg)
	if err != nil {
		_ = closeDB()
		return nil, nil, err
	}
	svc := account.NewService(repos.Users, repos.Tracks, assets.Store, auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL), account.Options{
		ResetTTL: cfg.ResetTokenTTL,
		BaseURL:  cfg.PublicBaseURL,
	})
	return svc, func() { _ = closeDB() }, nil
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "创建管理员账号",
	Long:  `按 ADMIN_NAME / ADMIN_LOGIN / ADMIN_PASSWORD 创建管理员。登录名已存在时不做任何修改。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openAccounts(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		created, err := svc.SeedAdmin(cmd.Context(), cfg.AdminName, cfg.AdminLogin, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "管理员 %s 已创建\n", cfg.AdminLogin)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s 已存在，跳过\n", cfg.AdminLogin)
		}
		return nil
	},
}

var cleanupYes bool

var cleanupUsersCmd = &cobra.Command{
	Use:   "cleanup-users",
	Short: "删除所有非管理员用户及其曲目",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cleanupYes {
			return fmt.Errorf("该操作会删除所有非管理员用户，请加 --yes 确认")
		}
		svc, closeFn, err := openAccounts(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		n, err := svc.CleanupNonAdmins(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已删除 %d 个用户\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd, cleanupUsersCmd)
	cleanupUsersCmd.Flags().BoolVarP(&cleanupYes, "yes", "y", false, "确认删除")
}
