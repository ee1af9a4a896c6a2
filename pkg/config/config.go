// пакет config собирает настройки приложения из файла
// hnfront.yaml, переменных окружения и флагов.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ключи настроек. Имя переменной окружения - ключ в верхнем регистре.
const (
	WebAddrKey      = "web_addr"
	APIURLKey       = "api_url"
	APIProxyURLKey  = "api_proxy_url"
	APITimeoutKey   = "api_timeout"
	SessionDBKey    = "session_db"
	SessionTTLKey   = "session_ttl"
	CookieSecureKey = "cookie_secure"
	LogLevelKey     = "log_level"
)

// Config - настройки приложения.
type Config struct {
	WebAddr      string        `mapstructure:"web_addr"`
	APIURL       string        `mapstructure:"api_url"`
	APIProxyURL  string        `mapstructure:"api_proxy_url"`
	APITimeout   time.Duration `mapstructure:"api_timeout"`
	SessionDB    string        `mapstructure:"session_db"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	LogLevel     string        `mapstructure:"log_level"`
}

// Defaults задает значения по умолчанию.
func Defaults(v *viper.Viper) {
	v.SetDefault(WebAddrKey, ":8080")
	v.SetDefault(APIURLKey, "http://localhost:8000")
	v.SetDefault(APIProxyURLKey, "")
	v.SetDefault(APITimeoutKey, "5s")
	v.SetDefault(SessionDBKey, "")
	v.SetDefault(SessionTTLKey, "720h")
	v.SetDefault(CookieSecureKey, false)
	v.SetDefault(LogLevelKey, "info")
}

// Load читает настройки. Отсутствие файла настроек не ошибка.
func Load(v *viper.Viper) (Config, error) {
	Defaults(v)

	v.SetConfigName("hnfront")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, errors.Wrap(err, "read config")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, errors.Wrap(err, "decode config")
	}

	return c, c.Validate()
}

// Validate проверяет настройки.
func (c Config) Validate() error {
	switch {
	case c.WebAddr == "":
		return errors.Errorf("%s must be set", WebAddrKey)
	case c.APIURL == "":
		return errors.Errorf("%s must be set", APIURLKey)
	case c.APITimeout <= 0:
		return errors.Errorf("%s must be positive", APITimeoutKey)
	case c.SessionTTL <= 0:
		return errors.Errorf("%s must be positive", SessionTTLKey)
	}
	return nil
}
