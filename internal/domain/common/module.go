package common

import (
	commonHandler "ustp_things/internal/pkg/common"
	"ustp_things/internal/pkg/config"
	"ustp_things/internal/pkg/middleware"
	"ustp_things/internal/pkg/registry"
	"ustp_things/internal/pkg/uploader"
	"ustp_things/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CommonModule 通用功能模块
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	setupRoutes(ctx.Router, commonHandler.NewUploadHandler(newUploader(config.GlobalConfig.OSS)))
	return nil
}

// newUploader OSS 未配置时返回 nil，上传接口回 503
func newUploader(cfg config.OSSConfig) uploader.Uploader {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		logger.Log.Warn("oss not configured, upload disabled")
		return nil
	}
	u, err := uploader.NewAliyunOSSUploader(cfg)
	if err != nil {
		logger.Log.Error("init oss uploader failed", zap.Error(err))
		return nil
	}
	return u
}

func setupRoutes(r *gin.Engine, h *commonHandler.UploadHandler) {
	// 商品图片上传
	r.POST("/upload", middleware.AuthMiddleware(), h.UploadFile)
}
