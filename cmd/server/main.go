// @title           PSO Monitor Service API
// @version         1.0
// @description     Backend orchestration service for live video monitoring: presence, streaming commands, recordings, talk sessions and supervisor assignment
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Enter the token with the `Bearer: ` prefix
package main

import (
	"fmt"
	"log"
	"os"

	"pso-monitor-service/config"
	"pso-monitor-service/internal/infrastructure/database"
	"pso-monitor-service/models"
	"pso-monitor-service/routes"
	"pso-monitor-service/services"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// 初始化日志配置
	if err := config.SetupLogger(); err != nil {
		fmt.Printf("初始化日志配置失败: %v\n", err)
		os.Exit(1)
	}

	// 加载.env文件
	if err := godotenv.Load(); err != nil {
		config.Warning("无法加载.env文件: %v", err)
		// 即使加载失败也继续执行，可能环境变量已经通过其他方式设置
	} else {
		config.Info("成功加载.env文件")
	}

	// 获取配置
	cfg := config.GetConfig()

	// 连接数据库
	pool, err := database.NewConnectionPool(cfg)
	if err != nil {
		log.Fatalf("无法连接数据库: %v", err)
	}
	defer pool.Close()
	db := pool.GetDB()

	// 根据配置执行不同的数据库操作
	if cfg.DBMigrationMode == "drop" {
		// 删除并重建表
		log.Println("警告: 在drop模式下运行，将删除并重建所有表")
		err = dropAndRecreateTables(db)
		if err != nil {
			log.Fatalf("删除并重建表失败: %v", err)
		}
	} else if cfg.DBMigrationMode == "alter" {
		// 执行高级迁移，补上AutoMigrate建不出来的约束
		log.Println("在alter模式下运行，将修改表结构以匹配模型")
		err = advancedMigrate(db)
		if err != nil {
			log.Fatalf("高级迁移失败: %v", err)
		}
	} else {
		// 默认AutoMigrate，只会添加新列和新表，不会删除或修改列
		log.Println("在标准模式下运行，将只添加新列和新表")
		if err := autoMigrate(db); err != nil {
			log.Fatalf("自动迁移失败: %v", err)
		}
	}

	// 确保系统中有管理员账户
	authService := services.NewAuthService(cfg, db)
	if err := authService.EnsureDefaultAdmin(); err != nil {
		log.Printf("无法创建默认管理员: %v", err)
	}

	// 初始化路由
	r := routes.SetupRouter(db, cfg)

	// 获取端口配置
	port := cfg.ServerPort
	if port == "" {
		port = "8080" // 默认端口
	}

	// 启动服务器
	config.Info("服务器启动在: http://localhost:%s", port)
	if err := r.Run(":" + port); err != nil {
		config.Error("启动服务器失败: %v", err)
		os.Exit(1)
	}
}

// autoMigrate 自动迁移所有模型（只添加新列和新表）
func autoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Admin{},
		&models.User{},
		&models.PresenceRecord{},
		&models.PresenceHistory{},
		&models.PendingCommand{},
		&models.RecordingSession{},
		&models.StreamingSession{},
		&models.TalkSession{},
	)

	if err != nil {
		return err
	}

	fmt.Println("Database migration completed")
	return nil
}

// advancedMigrate 在AutoMigrate之外补充唯一性约束
// MySQL没有部分唯一索引，用生成列把"进行中"压成可索引的标记：
// 会话未结束时标记为1，结束后为NULL，配合唯一索引保证单个用户至多一条进行中会话
func advancedMigrate(db *gorm.DB) error {
	if err := autoMigrate(db); err != nil {
		return err
	}

	if err := ensureSingleActiveIndex(db, "talk_sessions", "pso_id", "idx_talk_sessions_single_active"); err != nil {
		return err
	}
	return ensureSingleActiveIndex(db, "streaming_sessions", "user_id", "idx_streaming_sessions_single_active")
}

// ensureSingleActiveIndex 为会话表补上活跃唯一索引
// MySQL的ALTER TABLE不支持IF NOT EXISTS，先查information_schema再执行，DDL失败即迁移失败
func ensureSingleActiveIndex(db *gorm.DB, table, keyColumn, indexName string) error {
	var columnCount int64
	err := db.Raw(
		`SELECT COUNT(*) FROM information_schema.COLUMNS
			WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = 'active_flag'`,
		table,
	).Scan(&columnCount).Error
	if err != nil {
		return fmt.Errorf("检查 %s.active_flag 失败: %w", table, err)
	}
	if columnCount == 0 {
		stmt := fmt.Sprintf(
			"ALTER TABLE `%s` ADD COLUMN active_flag TINYINT GENERATED ALWAYS AS (IF(stopped_at IS NULL, 1, NULL)) STORED",
			table,
		)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("创建 %s.active_flag 失败: %w", table, err)
		}
		log.Printf("已创建生成列: %s.active_flag", table)
	}

	var indexCount int64
	err = db.Raw(
		`SELECT COUNT(DISTINCT INDEX_NAME) FROM information_schema.STATISTICS
			WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME = ?`,
		table, indexName,
	).Scan(&indexCount).Error
	if err != nil {
		return fmt.Errorf("检查索引 %s 失败: %w", indexName, err)
	}
	if indexCount == 0 {
		stmt := fmt.Sprintf(
			"CREATE UNIQUE INDEX `%s` ON `%s` (`%s`, active_flag)",
			indexName, table, keyColumn,
		)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("创建索引 %s 失败: %w", indexName, err)
		}
		log.Printf("已创建活跃唯一索引: %s", indexName)
	}
	return nil
}

// dropAndRecreateTables 删除并重建所有表
func dropAndRecreateTables(db *gorm.DB) error {
	// 警告: 这将删除所有数据
	log.Println("警告: 正在删除并重建所有表，所有数据将丢失")

	// 禁用外键检查以允许删除表
	db.Exec("SET FOREIGN_KEY_CHECKS = 0")
	defer db.Exec("SET FOREIGN_KEY_CHECKS = 1")

	// 获取所有表名
	var tables []string
	err := db.Raw("SHOW TABLES").Scan(&tables).Error
	if err != nil {
		return fmt.Errorf("failed to get table names: %w", err)
	}

	// 删除所有表
	for _, table := range tables {
		log.Printf("正在删除表: %s", table)
		err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS `%s`", table)).Error
		if err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	// 重新创建所有表
	log.Println("正在重新创建所有表")
	return advancedMigrate(db)
}
