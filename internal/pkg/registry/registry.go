package registry

import (
	"fmt"
	"sort"
	"ustp_things/internal/pkg/events"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Router *gin.Engine
	Events *events.Bus
	Cron   *cron.Cron

	// Services 模块间共享的服务，按名字注册，后初始化的模块通过 Lookup 取用
	Services map[string]interface{}

	closers []func()
}

// OnShutdown 注册退出时执行的清理函数，按注册的逆序执行
func (c *ModuleContext) OnShutdown(fn func()) {
	c.closers = append(c.closers, fn)
}

// Shutdown 执行所有清理函数
func (c *ModuleContext) Shutdown() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Provide 注册共享服务
func (c *ModuleContext) Provide(name string, svc interface{}) {
	if c.Services == nil {
		c.Services = make(map[string]interface{})
	}
	c.Services[name] = svc
}

// Lookup 取共享服务，未注册返回错误（通常是优先级配置错了）
func (c *ModuleContext) Lookup(name string) (interface{}, error) {
	svc, ok := c.Services[name]
	if !ok {
		return nil, fmt.Errorf("registry: service %q not provided", name)
	}
	return svc, nil
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	// user -> product -> ledger -> order -> payment
	Priority() int
}

// moduleRegistry 全局模块注册表
var moduleRegistry = make(map[string]Module)

// Register 注册模块
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// GetModules 获取所有已注册的模块
func GetModules() map[string]Module {
	return moduleRegistry
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}

	sort.SliceStable(modules, func(i, j int) bool {
		if modules[i].Priority() == modules[j].Priority() {
			return modules[i].Name() < modules[j].Name()
		}
		return modules[i].Priority() < modules[j].Priority()
	})

	for _, module := range modules {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
	}

	return nil
}
