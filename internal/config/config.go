// Package config builds the values internal/brokerage, internal/coordinator,
// internal/statusapi, and internal/registrymirror need from the process
// environment, optionally seeded from a .env file the way
// Godfreeyyy-fcv-2025's cmd/main.go loads one with godotenv.Load before
// reading os.Getenv. spec.md §1 places "static configuration loading and
// command-line parsing" out of scope for the core; this package is the
// ambient piece that produces a brokerage.Config for the cmd/ binaries.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"fbroker/internal/brokerage"
	"fbroker/internal/consolelog"
	"fbroker/internal/protocol"
)

const (
	envWorkers         = "FASTBUILD_WORKERS"
	envCoordinator     = "FASTBUILD_COORDINATOR"
	envBrokeragePath   = "FASTBUILD_BROKERAGE_PATH"
	envCoordinatorBind = "COORDINATOR_BIND_ADDR"
	envStatusAddr      = "BROKERAGE_STATUS_ADDR"
	envRedisAddr       = "BROKERAGE_REDIS_ADDR"
	envRedisPassword   = "BROKERAGE_REDIS_PASSWORD"
	envRedisDB         = "BROKERAGE_REDIS_DB"
)

// LoadDotEnv loads a .env file if present. A missing file is not an
// error — unlike the pack's example, which treats it as fatal, this
// system's env vars all have sensible zero-value defaults (unconfigured
// brokerage, no status API, no Redis mirror), so a missing .env simply
// means "use the process environment as-is".
func LoadDotEnv(path string) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		consolelog.Info_("config: no .env file loaded (%v)", err)
	}
}

// BrokerageConfig builds a brokerage.Config from the three FASTBUILD_*
// environment variables, exactly as spec.md §6 names them.
func BrokerageConfig() brokerage.Config {
	return brokerage.Config{
		Workers:         brokerage.SplitList(os.Getenv(envWorkers)),
		CoordinatorAddr: os.Getenv(envCoordinator),
		BrokeragePaths:  brokerage.SplitList(os.Getenv(envBrokeragePath)),
	}
}

// CoordinatorBindAddr is the address cmd/coordinator listens on for the
// wire protocol; defaults to every interface on the well-known port.
func CoordinatorBindAddr() string {
	if v := os.Getenv(envCoordinatorBind); v != "" {
		return v
	}
	return ":" + strconv.Itoa(protocol.CoordinatorPort)
}

// StatusAddr returns the address for internal/statusapi, and whether it
// was configured at all (BROKERAGE_STATUS_ADDR unset disables the
// status API entirely).
func StatusAddr() (addr string, enabled bool) {
	addr = os.Getenv(envStatusAddr)
	return addr, addr != ""
}

// RedisConfig is what internal/registrymirror needs to dial Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisMirrorConfig returns the Redis connection settings for
// internal/registrymirror, and whether it was configured at all
// (BROKERAGE_REDIS_ADDR unset disables the mirror entirely).
func RedisMirrorConfig() (cfg RedisConfig, enabled bool) {
	addr := os.Getenv(envRedisAddr)
	if addr == "" {
		return RedisConfig{}, false
	}
	db := 0
	if v := os.Getenv(envRedisDB); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		} else {
			consolelog.Warn_("config: invalid %s=%q, using 0", envRedisDB, v)
		}
	}
	return RedisConfig{
		Addr:     addr,
		Password: os.Getenv(envRedisPassword),
		DB:       db,
	}, true
}
