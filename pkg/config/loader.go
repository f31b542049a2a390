package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvInfo 服務設定 from .env
type EnvInfo struct {
	// image name
	Transcoding string

	// service port
	TranscodingPort string

	// service yaml path
	TranscodingYAMLPath string

	// service log path
	TranscodingLogPath string
}

// EnvConfig 服務設定
var (
	EnvConfig = initEnv()
	envConfig EnvInfo
	once      sync.Once
	env       string
)

func initEnv() EnvInfo {
	once.Do(func() {
		path, err := GetPath(".env", 5)
		if err != nil {
			log.Printf("Warning: Could not get .env path: %v", err)
		} else if err := godotenv.Load(path); err != nil {
			log.Printf("Warning: Could not load .env file: %v", err)
		}

		env = os.Getenv("ENV")

		envConfig = EnvInfo{
			Transcoding:         getEnv("TRANSCODING_SERVICE", "transcoding_service"),
			TranscodingPort:     os.Getenv("TRANSCODING_SERVICE_PORT"),
			TranscodingYAMLPath: getEnv("TRANSCODING_SERVICE_YAML", "./config"),
			TranscodingLogPath:  os.Getenv("TRANSCODING_SERVICE_LOG"),
		}
	})

	return envConfig
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IsProduction check run env
func IsProduction() bool {
	return env == "production"
}

// IsLocal check run env
func IsLocal() bool {
	return env == "local"
}

// LoadConfig 加載配置, 失敗時直接結束程式
func LoadConfig[T any](serviceName string, configPath string, defaults map[string]interface{}) T {
	cfg, err := ReadConfig[T](serviceName, configPath, defaults)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return cfg
}

// ReadConfig 讀取 YAML + 環境變數, 找不到設定檔時只使用預設值
func ReadConfig[T any](serviceName string, configPath string, defaults map[string]interface{}) (T, error) {
	var cfg T

	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 自動讀取環境變數, redis.addr -> REDIS_ADDR
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		log.Printf("Warning: config file %s not found in %s, using defaults", serviceName, configPath)
	} else {
		rawConfig, err := os.ReadFile(v.ConfigFileUsed())
		if err != nil {
			return cfg, fmt.Errorf("read raw config file: %w", err)
		}

		// 替換 ${} 占位符為環境變數的值
		expandedConfig := os.ExpandEnv(string(rawConfig))
		if err := v.ReadConfig(bytes.NewBufferString(expandedConfig)); err != nil {
			return cfg, fmt.Errorf("read expanded config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// GetPath use fileName loop maxCount find file path
func GetPath(fileName string, maxCount int) (string, error) {
	path := "./" + fileName

	for i := 0; i < maxCount; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = "../" + path
	}
	return "", errors.New(fileName + " can't find path")
}
