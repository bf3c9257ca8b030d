package api

import (
	"ps2cfg/internal/pkg"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 配置 Gin 路由
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.Default()

	// 配置 CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	r.GET("/health", h.Health)
	r.POST("/process-hex", h.ProcessHex)         // 上传配置，生成报告和 zip
	r.GET("/download/:fileName", h.Download)     // 下载生成的 zip

	metrics := h.Service.Metrics
	if metrics == nil {
		metrics = pkg.GetMetrics()
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	// API v1 分组
	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/decode", h.Decode)          // 段解码，支持 filter
		apiV1.POST("/patches", h.Patches)        // 0x0A 补丁 JSON
		apiV1.GET("/opcodes", h.Opcodes)         // 命令表
		apiV1.GET("/games/:gameID", h.Game)      // 游戏 hash 查询
		apiV1.POST("/convert", h.Convert)        // 调用外部转换程序
		apiV1.GET("/uploads", h.Uploads)         // 最近的上传记录
	}

	return r
}
