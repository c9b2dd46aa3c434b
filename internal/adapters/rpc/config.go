package rpc

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Environment knobs of the RPC transport.
const (
	envRPCToken          = "LNW_RPC_TOKEN"
	envRPCTokenFile      = "LNW_RPC_TOKEN_FILE"
	envRPCTokenRotate    = "LNW_RPC_TOKEN_ROTATE_ON_START"
	envRequireRPCToken   = "LNW_REQUIRE_RPC_TOKEN"
	envDeployment        = "LNW_ENV"
	envAllowNullOrigin   = "LNW_ALLOW_NULL_ORIGIN"
	envRateLimitEnabled  = "LNW_RPC_RATE_LIMIT_ENABLED"
	envRateLimitRPS      = "LNW_RPC_RATE_LIMIT_RPS"
	envRateLimitBurst    = "LNW_RPC_RATE_LIMIT_BURST"
	envStreamMaxGlobal   = "LNW_RPC_STREAM_MAX_GLOBAL"
	envStreamMaxPerPeer  = "LNW_RPC_STREAM_MAX_PER_CLIENT"
	generatedTokenPrefix = "lnw_"
)

var errTokenRequired = errors.New(envRPCToken + " is required unless " + envRequireRPCToken + "=false or " + envDeployment + " is test/development/local")

type transportConfig struct {
	token           string
	requireToken    bool
	allowNullOrigin bool

	rateLimited bool
	rateRPS     float64
	rateBurst   int

	maxStreams        int64
	maxStreamsPerPeer int
}

// loadTransportConfig reads auth and limits from the environment. A missing
// token where one is required is an error.
func loadTransportConfig() (transportConfig, error) {
	cfg := loadLimitConfig()
	cfg.requireToken = requiresRPCToken()
	token, err := resolveRPCToken()
	if err != nil {
		return transportConfig{}, err
	}
	if cfg.requireToken && token == "" {
		return transportConfig{}, errTokenRequired
	}
	cfg.token = token
	return cfg, nil
}

func loadLimitConfig() transportConfig {
	cfg := transportConfig{
		rateLimited:       !isTestEnv(),
		rateRPS:           30,
		rateBurst:         60,
		maxStreams:        128,
		maxStreamsPerPeer: 8,
	}
	if v, ok := envFlag(envAllowNullOrigin); ok {
		cfg.allowNullOrigin = v
	}
	if v, ok := envFlag(envRateLimitEnabled); ok {
		cfg.rateLimited = v
	}
	if v, ok := envPositiveFloat(envRateLimitRPS); ok {
		cfg.rateRPS = v
	}
	if v, ok := envPositiveInt(envRateLimitBurst); ok {
		cfg.rateBurst = v
	}
	if v, ok := envPositiveInt(envStreamMaxGlobal); ok {
		cfg.maxStreams = int64(v)
	}
	if v, ok := envPositiveInt(envStreamMaxPerPeer); ok {
		cfg.maxStreamsPerPeer = v
	}
	return cfg
}

// requiresRPCToken is fail-closed: outside test/development deployments the
// token stays required even when LNW_REQUIRE_RPC_TOKEN=false.
func requiresRPCToken() bool {
	nonProd := isNonProdEnv()
	if v, ok := envFlag(envRequireRPCToken); ok {
		return v || !nonProd
	}
	return !nonProd
}

func deployment() string {
	return strings.ToLower(strings.TrimSpace(os.Getenv(envDeployment)))
}

func isNonProdEnv() bool {
	switch deployment() {
	case "test", "testing", "dev", "development", "local":
		return true
	default:
		return false
	}
}

func isTestEnv() bool {
	d := deployment()
	return d == "test" || d == "testing"
}

// resolveRPCToken reads LNW_RPC_TOKEN. "auto", or LNW_RPC_TOKEN_ROTATE_ON_START,
// generates a fresh token and writes it to LNW_RPC_TOKEN_FILE when set.
func resolveRPCToken() (string, error) {
	token := strings.TrimSpace(os.Getenv(envRPCToken))
	rotate, _ := envFlag(envRPCTokenRotate)
	if !rotate && !strings.EqualFold(token, "auto") {
		return token, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token = generatedTokenPrefix + hex.EncodeToString(buf)
	if path := strings.TrimSpace(os.Getenv(envRPCTokenFile)); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
			return "", err
		}
	}
	return token, nil
}

func envFlag(name string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func envPositiveInt(name string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func envPositiveFloat(name string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(name)), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
