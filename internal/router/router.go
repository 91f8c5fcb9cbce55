package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog_import_v1_202608/internal/controller"
	"catalog_import_v1_202608/internal/middleware"
)

// Controllers 路由依赖的控制器集合
type Controllers struct {
	Auth      *controller.AuthController
	Product   *controller.ProductController
	Rule      *controller.RuleController
	Scheduler *controller.SchedulerController
}

// SetupRouter 装配路由
// /healthz 与登录接口公开，其余控制面接口全部要求 JWT
func SetupRouter(ctrls *Controllers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.AuditLog())

	// 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// 公开接口
		api.POST("/auth/login", ctrls.Auth.Login)

		// 受保护接口
		auth := api.Group("")
		auth.Use(middleware.JWTAuth())
		{
			// 商品
			auth.GET("/products", ctrls.Product.GetProducts)
			auth.GET("/products/stats", ctrls.Product.GetStats)
			auth.GET("/products/:id", ctrls.Product.GetProduct)
			auth.PATCH("/products/:id/pricing", ctrls.Product.UpdatePricing)
			auth.DELETE("/products/:id", ctrls.Product.DeleteProduct)

			// 阶段迁移
			auth.POST("/transitions", ctrls.Product.BulkTransition)

			// 规则配置
			auth.GET("/rules", ctrls.Rule.GetRules)
			auth.PUT("/rules", ctrls.Rule.UpdateRules)

			// 调度器
			auth.POST("/scheduler/start", ctrls.Scheduler.StartScheduler)
			auth.POST("/scheduler/stop", ctrls.Scheduler.StopScheduler)
			auth.GET("/scheduler/status", ctrls.Scheduler.GetSchedulerStatus)
			auth.POST("/scheduler/run", ctrls.Scheduler.RunNow)
		}
	}

	return r
}
