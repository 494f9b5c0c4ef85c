package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/opensource-finance/truerev/internal/domain"
	"github.com/opensource-finance/truerev/internal/signals"
	"github.com/opensource-finance/truerev/internal/worker"
)

// settings is everything main needs to wire the service.
type settings struct {
	*domain.Config

	WorkerEnabled bool
	Worker        worker.Config
}

// loadSettings layers flags, TRUEREV_* environment variables and an
// optional truerev.{yaml,json,toml} file over the tier defaults.
// Underwriting thresholds come from a separate JSON file so pattern and
// industry keys keep their case.
func loadSettings(args []string) (*settings, error) {
	flags := pflag.NewFlagSet("truerev", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a config file")
	flags.String("tier", "", "deployment tier: community or pro")
	flags.Int("port", 0, "HTTP listen port")
	flags.String("log-level", "", "debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("TRUEREV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, flag := range map[string]string{
		"tier":          "tier",
		"server.port":   "port",
		"logging.level": "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, err
		}
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("truerev")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/truerev")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := domain.DefaultConfig()
	if strings.EqualFold(v.GetString("tier"), string(domain.TierPro)) {
		cfg = domain.ProConfig()
	}
	s := &settings{Config: cfg, WorkerEnabled: cfg.Tier == domain.TierPro}

	o := overrides{v}
	o.str("server.host", &cfg.Server.Host)
	o.num("server.port", &cfg.Server.Port)
	o.num("server.readTimeout", &cfg.Server.ReadTimeout)
	o.num("server.writeTimeout", &cfg.Server.WriteTimeout)

	o.str("repository.driver", &cfg.Repository.Driver)
	o.str("repository.sqlitePath", &cfg.Repository.SQLitePath)
	o.str("repository.postgres.host", &cfg.Repository.PostgresHost)
	o.num("repository.postgres.port", &cfg.Repository.PostgresPort)
	o.str("repository.postgres.user", &cfg.Repository.PostgresUser)
	o.str("repository.postgres.password", &cfg.Repository.PostgresPassword)
	o.str("repository.postgres.db", &cfg.Repository.PostgresDB)
	o.str("repository.postgres.sslMode", &cfg.Repository.PostgresSSLMode)

	o.str("cache.type", &cfg.Cache.Type)
	o.num("cache.localMaxSize", &cfg.Cache.LocalMaxSize)
	o.dur("cache.localTTL", &cfg.Cache.LocalTTL)
	o.str("cache.redisAddr", &cfg.Cache.RedisAddr)
	o.str("cache.redisPassword", &cfg.Cache.RedisPassword)
	o.num("cache.redisDB", &cfg.Cache.RedisDB)
	o.flag("cache.twoPhase", &cfg.Cache.EnableTwoPhase)

	o.str("eventBus.type", &cfg.EventBus.Type)
	o.num("eventBus.bufferSize", &cfg.EventBus.ChannelBufferSize)
	o.str("eventBus.natsUrl", &cfg.EventBus.NATSUrl)
	o.str("eventBus.natsToken", &cfg.EventBus.NATSToken)
	o.num("eventBus.natsMaxReconnects", &cfg.EventBus.NATSMaxReconnects)
	o.num("eventBus.natsReconnectWait", &cfg.EventBus.NATSReconnectWait)

	o.str("logging.level", &cfg.Logging.Level)
	o.str("logging.format", &cfg.Logging.Format)
	o.flag("tracing.enabled", &cfg.Tracing.Enabled)
	o.str("tracing.serviceName", &cfg.Tracing.ServiceName)
	o.flag("metrics.enabled", &cfg.Metrics.Enabled)
	o.str("metrics.namespace", &cfg.Metrics.Namespace)
	o.str("metrics.path", &cfg.Metrics.Path)

	if path := v.GetString("underwriting.file"); path != "" {
		if err := loadUnderwriting(path, &cfg.Underwriting); err != nil {
			return nil, err
		}
	}
	sc := &cfg.Underwriting.Signals
	o.dur("signals.timeout", &sc.Timeout)
	o.dur("signals.cacheTTL", &sc.CacheTTL)
	for _, kind := range signals.Kinds {
		if url := v.GetString("signals.endpoints." + string(kind)); url != "" {
			if sc.Endpoints == nil {
				sc.Endpoints = make(map[domain.SignalKind]string)
			}
			sc.Endpoints[kind] = url
		}
	}

	o.flag("worker.enabled", &s.WorkerEnabled)
	o.num("worker.count", &s.Worker.WorkerCount)
	s.Worker.TenantIDs = o.list("worker.tenants")
	if s.Worker.WorkerCount == 0 {
		s.Worker.WorkerCount = 5
	}

	if v.ConfigFileUsed() != "" {
		slog.Info("config file loaded", "path", v.ConfigFileUsed())
	}
	return s, nil
}

// loadUnderwriting decodes a JSON file over the default thresholds.
func loadUnderwriting(path string, dst *domain.UnderwritingConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read underwriting config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse underwriting config %s: %w", path, err)
	}
	return nil
}

// overrides copies keys that are set onto config fields, leaving the
// tier default in place otherwise.
type overrides struct{ v *viper.Viper }

func (o overrides) str(key string, dst *string) {
	if o.v.IsSet(key) && o.v.GetString(key) != "" {
		*dst = o.v.GetString(key)
	}
}

func (o overrides) num(key string, dst *int) {
	if o.v.IsSet(key) && o.v.GetInt(key) != 0 {
		*dst = o.v.GetInt(key)
	}
}

func (o overrides) flag(key string, dst *bool) {
	if o.v.IsSet(key) {
		*dst = o.v.GetBool(key)
	}
}

func (o overrides) dur(key string, dst *time.Duration) {
	if o.v.IsSet(key) && o.v.GetDuration(key) > 0 {
		*dst = o.v.GetDuration(key)
	}
}

// list accepts a YAML list or a comma separated string.
func (o overrides) list(key string) []string {
	if s, ok := o.v.Get(key).(string); ok {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return o.v.GetStringSlice(key)
}
