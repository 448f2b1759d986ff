package db

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "config/config.yaml"
	DefaultJWTSecret  = "change-me-keytrack-secret"

	ModeDev     = "dev"
	ModeRelease = "release"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite | mysql
	Path     string `yaml:"path"`   // sqlite のファイルパス
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type AdminSeed struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type DepartmentSeed struct {
	Name          string `yaml:"name"`
	Faculty       string `yaml:"faculty"`
	Building      string `yaml:"building"`
	ContactPerson string `yaml:"contact_person"`
	ContactEmail  string `yaml:"contact_email"`
	ContactPhone  string `yaml:"contact_phone"`
}

type Config struct {
	Version        string           `yaml:"version"`
	Mode           string           `yaml:"mode"`
	Server         ServerConfig     `yaml:"server"`
	DB             DatabaseConfig   `yaml:"database"`
	Auth           AuthConfig       `yaml:"auth"`
	Certificate    Certs            `yaml:"certificate"`
	BootstrapAdmin *AdminSeed       `yaml:"bootstrap_admin"`
	Departments    []DepartmentSeed `yaml:"departments"`
}

// LoadConfig はYAMLを読み、環境変数で上書きし、未設定項目にデフォルトを入れる。
// ファイルが無い場合はデフォルト＋環境変数だけで起動できる。
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// デフォルトで続行
	default:
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("APP_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.DB.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DB.Path = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DB.Port = n
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.DB.Username = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.DB.DBName = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("JWT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Auth.TokenTTL = d
		}
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		c.Server.StaticDir = v
	}
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDev
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if c.DB.Driver == "" {
		c.DB.Driver = DriverSQLite
	}
	if c.DB.Driver == DriverSQLite && c.DB.Path == "" {
		c.DB.Path = "data/keys.db"
	}
	if c.DB.Driver == DriverMySQL && c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = DefaultJWTSecret
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
}

func (c *Config) Validate() error {
	if c.Mode != ModeDev && c.Mode != ModeRelease {
		return fmt.Errorf("mode は dev か release: %q", c.Mode)
	}
	switch c.DB.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("未対応の database.driver: %q", c.DB.Driver)
	}
	if c.DB.Driver == DriverMySQL && (c.DB.Host == "" || c.DB.DBName == "") {
		return errors.New("mysql には database.host と database.dbname が必要")
	}
	if c.Mode == ModeRelease && c.Auth.JWTSecret == DefaultJWTSecret {
		return errors.New("release モードではデフォルトの jwt_secret は使えない")
	}
	return nil
}
