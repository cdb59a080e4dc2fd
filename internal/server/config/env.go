package config

import (
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// EnvConfig lists the environment variables the service reads. Token
// lifetimes are whole minutes. Unset variables keep their zero value and
// leave the corresponding Config field alone.
type EnvConfig struct {
	Env                       string        `env:"ENV" env-description:"logger mode: local, dev or prod"`
	ServicePort               string        `env:"SERVICE_PORT" env-description:"HTTP listening port"`
	StorageDriver             string        `env:"STORAGE_DRIVER" env-description:"postgres, sqlite or memory"`
	DatabaseDSN               string        `env:"DATABASE_DSN" env-description:"credential store DSN"`
	SecretKey                 string        `env:"JWT_SECRET" env-description:"HS256 signing secret"`
	AccessTokenExpireMinutes  int           `env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-description:"access token lifetime in minutes"`
	RefreshTokenExpireMinutes int           `env:"REFRESH_TOKEN_EXPIRE_MINUTES" env-description:"refresh token lifetime in minutes"`
	PasswordHashCost          int           `env:"PASSWORD_HASH_COST" env-description:"bcrypt cost for new hashes"`
	ShutdownTimeout           time.Duration `env:"SHUTDOWN_TIMEOUT" env-description:"graceful shutdown timeout"`
}

// parseEnv overlays config with the environment. A malformed value (e.g. a
// non-numeric minute count) panics.
func parseEnv(config *Config) {
	e := &EnvConfig{}
	if err := cleanenv.ReadEnv(e); err != nil {
		panic(err)
	}
	e.applyTo(config)
}

func (e *EnvConfig) applyTo(config *Config) {
	if e.Env != "" {
		config.Env = e.Env
	}
	if e.ServicePort != "" {
		config.EndpointAddrHTTP = portToAddr(e.ServicePort)
	}
	if e.StorageDriver != "" {
		config.StorageDriver = e.StorageDriver
	}
	if e.DatabaseDSN != "" {
		config.DatabaseDSN = e.DatabaseDSN
	}
	if e.SecretKey != "" {
		config.SecretKey = e.SecretKey
	}
	if e.AccessTokenExpireMinutes != 0 {
		config.AccessTokenValidityDuration = time.Duration(e.AccessTokenExpireMinutes) * time.Minute
	}
	if e.RefreshTokenExpireMinutes != 0 {
		config.RefreshTokenValidityDuration = time.Duration(e.RefreshTokenExpireMinutes) * time.Minute
	}
	if e.PasswordHashCost != 0 {
		config.PasswordHashCost = e.PasswordHashCost
	}
	if e.ShutdownTimeout != 0 {
		config.ShutdownTimeout = e.ShutdownTimeout
	}
}

// portToAddr accepts either a bare port ("8000") or a full address.
func portToAddr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

// EnvUsage describes the supported environment variables, for -h output.
func EnvUsage() string {
	u, err := cleanenv.GetDescription(&EnvConfig{}, nil)
	if err != nil {
		return ""
	}
	return u
}
