package main

import (
	"fmt"
	"os"

	"whisperflow/backend/internal/auth"
	"whisperflow/backend/internal/config"
	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/storage"
	"whisperflow/backend/internal/storage/memory"
	sqlstore "whisperflow/backend/internal/storage/sql"
)

// main 在配置的存储中创建一个管理员账号。
//
// 系统没有开放注册，管理员只能通过这个命令行工具创建。
func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: create-admin <email> <password> <username> [super|admin]")
		os.Exit(1)
	}

	email := os.Args[1]
	password := os.Args[2]
	username := os.Args[3]
	role := domain.RoleAdmin
	if len(os.Args) >= 5 && os.Args[4] == "super" {
		role = domain.RoleSuper
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 创建存储（与服务端一致：配置了数据库就用数据库）
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			fmt.Printf("Failed to connect to database: %v\n", err)
			os.Exit(1)
		}
	} else {
		store = memory.NewStore()
		fmt.Println("Warning: no database configured, user will only exist in memory.")
	}
	defer store.Close()

	authService := auth.NewService(store)
	user, err := authService.CreateAdmin(auth.CreateAdminInput{
		Email:    email,
		Username: username,
		Password: password,
		Role:     role,
	})
	if err != nil {
		fmt.Printf("Failed to create admin: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Admin user created successfully!\n")
	fmt.Printf("  ID:       %s\n", user.ID)
	fmt.Printf("  Email:    %s\n", user.Email)
	fmt.Printf("  Username: %s\n", user.Username)
	fmt.Printf("  Role:     %s\n", user.Role)
}
