package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"catalog_import_v1_202608/internal/controller"
	"catalog_import_v1_202608/internal/middleware"
	"catalog_import_v1_202608/internal/model"
	"catalog_import_v1_202608/internal/repository"
	"catalog_import_v1_202608/internal/router"
	"catalog_import_v1_202608/internal/service"
	"catalog_import_v1_202608/internal/task"
	"catalog_import_v1_202608/pkg/database"
)

// ==================== 依赖容器 ====================

// dependencies 应用依赖容器
type dependencies struct {
	db *gorm.DB

	productRepo repository.ProductRepository
	ruleRepo    repository.RuleSetRepository

	productSvc  *service.ProductService
	ruleSvc     *service.RuleService
	dedupSvc    *service.DedupService
	transitions *service.TransitionService

	importTask *task.ImportTask

	controllers *router.Controllers
}

// initDatabase 初始化数据库
func initDatabase() *gorm.DB {
	dsn := getEnv("DATABASE_DSN",
		"host=localhost user=postgres password=postgres dbname=catalog_import port=5432 sslmode=disable TimeZone=Asia/Shanghai")

	db, err := database.InitDB(dsn,
		&model.ProductRecord{},
		&model.RuleSet{},
	)
	if err != nil {
		log.Fatalf("数据库初始化失败: %v", err)
	}
	return db
}

// initDependencies 装配全部依赖
func initDependencies(db *gorm.DB) *dependencies {
	deps := &dependencies{db: db}

	// 仓储层
	deps.productRepo = repository.NewProductRepository(db)
	deps.ruleRepo = repository.NewRuleSetRepository(db)

	// 服务层
	deps.productSvc = service.NewProductService(deps.productRepo)
	deps.ruleSvc = service.NewRuleService(deps.ruleRepo)
	deps.dedupSvc = service.NewDedupService(deps.productRepo)
	deps.transitions = service.NewTransitionService(deps.productRepo)
	deps.transitions.AddListener(service.LogStageChanges)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := deps.ruleSvc.Load(ctx); err != nil {
		log.Fatalf("规则配置加载失败: %v", err)
	}
	if err := deps.dedupSvc.Rebuild(ctx); err != nil {
		// fail-open：索引为空照常运行，唯一索引兜底去重
		log.Printf("去重索引重建失败，已降级: %v", err)
	}

	// 目录源
	source := service.NewCatalogSourceService(&service.CatalogSourceConfig{
		BaseURL: getEnv("CATALOG_API_URL", "http://localhost:9000"),
		APIKey:  os.Getenv("CATALOG_API_KEY"),
	})

	// 分类器（未配置 API Key 时禁用，候选全部走人工审核）
	var classifier service.Classifier
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		classifier = service.NewGeminiClassifier(&service.GeminiClassifierConfig{APIKey: apiKey})
	} else {
		log.Println("未配置 GEMINI_API_KEY，分类器已禁用")
	}

	// 调度任务
	deps.importTask = task.NewImportTask(
		source,
		classifier,
		deps.dedupSvc,
		deps.ruleSvc,
		deps.productSvc,
		deps.transitions,
	)

	// 控制器
	deps.controllers = &router.Controllers{
		Auth:      controller.NewAuthController(),
		Product:   controller.NewProductController(deps.productSvc, deps.transitions),
		Rule:      controller.NewRuleController(deps.ruleSvc),
		Scheduler: controller.NewSchedulerController(deps.importTask),
	}

	return deps
}

// ==================== 启动 ====================

func main() {
	log.Println("========== 商品目录导入服务启动 ==========")

	// JWT 密钥
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg := middleware.DefaultJWTConfig()
		cfg.SecretKey = secret
		middleware.SetJWTConfig(cfg)
	}

	db := initDatabase()
	deps := initDependencies(db)

	// 调度器重启后总是 stopped，由操作员显式启动
	if deps.ruleSvc.Active().AutoImportEnabled {
		log.Println("自动导入规则已启用，请通过 /api/scheduler/start 启动调度器")
	}

	startServer(deps)
}

// startServer 启动 HTTP 服务并处理优雅退出
func startServer(deps *dependencies) {
	r := router.SetupRouter(deps.controllers)

	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: r,
	}

	go func() {
		log.Printf("HTTP 服务监听 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务异常退出: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("收到退出信号，开始优雅关闭...")

	// 先停调度器，在途批次运行到结束
	deps.importTask.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP 服务关闭异常: %v", err)
	}

	log.Println("========== 服务已退出 ==========")
}

// getEnv 读取环境变量，未设置时返回默认值
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
