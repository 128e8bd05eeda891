package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database DatabaseConfig  `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	JWT      JWTConfig       `mapstructure:"jwt"`
	App      AppConfig       `mapstructure:"app"`
	OSS      OSSConfig       `mapstructure:"oss"`
	Push     PushConfig      `mapstructure:"push"`
	Kafka    KafkaConfig     `mapstructure:"kafka"`
	Checkout CheckoutConfig  `mapstructure:"checkout"`
	Gateway  GatewayConfig   `mapstructure:"gateway"`
	Alipay   AlipayConfig    `mapstructure:"alipay"`
	Wechat   WechatPayConfig `mapstructure:"wechat"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env         string `mapstructure:"env"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	TestOTPCode string `mapstructure:"test_otp_code"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimitQPS   float64  `mapstructure:"rate_limit_qps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
}

type PushConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	AppKey          int64  `mapstructure:"app_key"`
	RegionID        string `mapstructure:"region_id"`
}

// KafkaConfig 订单事件投递，Brokers 为空时不启用
type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// CheckoutConfig 下单与支付回调相关参数
type CheckoutConfig struct {
	DraftTTL       time.Duration `mapstructure:"draft_ttl"`       // 待支付草稿保留时间
	ProcessedTTL   time.Duration `mapstructure:"processed_ttl"`   // 已处理标记保留时间
	LockExpiry     time.Duration `mapstructure:"lock_expiry"`     // 回调分布式锁过期时间
	LockTries      int           `mapstructure:"lock_tries"`      // 回调分布式锁重试次数
	ReconcileSpec  string        `mapstructure:"reconcile_spec"`  // cron 表达式 (秒级)
	ReconcileAfter time.Duration `mapstructure:"reconcile_after"` // 草稿超过该时长才参与对账
	SuccessURL     string        `mapstructure:"success_url"`
	FailureURL     string        `mapstructure:"failure_url"`
	CancelURL      string        `mapstructure:"cancel_url"`
	LedgerWorkers  int           `mapstructure:"ledger_workers"`
	LedgerQueue    int           `mapstructure:"ledger_queue"`
}

// GatewayConfig 电子钱包托管收银台
type GatewayConfig struct {
	BaseURL       string            `mapstructure:"base_url"`
	SecretKey     string            `mapstructure:"secret_key"`
	CallbackToken string            `mapstructure:"callback_token"`
	Currency      string            `mapstructure:"currency"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	Channels      map[string]string `mapstructure:"channels"` // 支付方式 -> channel code, e.g. gcash: PH_GCASH
}

type AlipayConfig struct {
	AppID        string `mapstructure:"app_id"`
	PrivateKey   string `mapstructure:"private_key"`   // 应用私钥
	PublicKey    string `mapstructure:"public_key"`    // 支付宝公钥 (不是应用公钥)
	IsProduction bool   `mapstructure:"is_production"` // 是否生产环境
}

type WechatPayConfig struct {
	AppID                string `mapstructure:"app_id"`
	MchID                string `mapstructure:"mch_id"`
	MchCertificateSerial string `mapstructure:"mch_cert_serial"`
	MchPrivateKey        string `mapstructure:"mch_private_key"`
	APIv3Key             string `mapstructure:"apiv3_key"`
	NotifyURL            string `mapstructure:"notify_url"`
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if c.Checkout.SuccessURL == "" || c.Checkout.CancelURL == "" {
		return errors.New("checkout redirect urls are required")
	}

	if c.Gateway.BaseURL != "" && c.Gateway.SecretKey == "" {
		return errors.New("gateway secret key is required when gateway base url is set")
	}

	return nil
}

// LoadConfig 加载配置
func LoadConfig() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if host := os.Getenv("DB_HOST"); host != "" {
		GlobalConfig.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		GlobalConfig.JWT.Secret = jwtSecret
	}
	if key := os.Getenv("GATEWAY_SECRET_KEY"); key != "" {
		GlobalConfig.Gateway.SecretKey = key
	}

	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("jwt.expire", 24*30)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("app.rate_limit_qps", 50)
	viper.SetDefault("app.rate_limit_burst", 100)
	viper.SetDefault("database.log_level", "warn")
	viper.SetDefault("kafka.topic_prefix", "ustp.")

	viper.SetDefault("checkout.draft_ttl", time.Hour)
	viper.SetDefault("checkout.processed_ttl", 24*time.Hour)
	viper.SetDefault("checkout.lock_expiry", 30*time.Second)
	viper.SetDefault("checkout.lock_tries", 50)
	viper.SetDefault("checkout.reconcile_spec", "0 * * * * *")
	viper.SetDefault("checkout.reconcile_after", 5*time.Minute)
	viper.SetDefault("checkout.ledger_workers", 2)
	viper.SetDefault("checkout.ledger_queue", 256)

	viper.SetDefault("gateway.currency", "PHP")
	viper.SetDefault("gateway.timeout", 10*time.Second)
	viper.SetDefault("gateway.channels", map[string]string{
		"gcash": "PH_GCASH",
		"maya":  "PH_PAYMAYA",
	})
}
