// Command socksrotated is a runnable host simulator: it wires the
// static ini config, the JSON proxy list and settings files, and the
// connection engine together, standing in for "the host tool"
// spec.md §1 treats as an external collaborator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"socksrotate/internal/core/engine"
	"socksrotate/internal/core/registry"
	"socksrotate/internal/shared/config"
	"socksrotate/internal/shared/logger"
	"socksrotate/internal/shared/settings"
)

const shutdownGrace = 5 * time.Second

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "socksrotate.ini")

	cfg := &config.StaticConfig{
		Server: config.ServerConf{
			ListenAddr:    "127.0.0.1:1080",
			ProxyListFile: filepath.Join(*configDir, "proxies.json"),
			SettingsFile:  filepath.Join(*configDir, "settings.json"),
		},
		Log: logger.LogConf{Level: "info"},
	}
	if err := config.LoadIni(cfg, iniPath); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: failed to load config file %q: %v\n", iniPath, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	proxies, err := config.LoadProxyList(cfg.Server.ProxyListFile)
	if err != nil {
		logger.Fatal().Err(err).Msgf("failed to load proxy list %q", cfg.Server.ProxyListFile)
	}

	settingsMgr, err := settings.NewSettingsManager(cfg.Server.SettingsFile)
	if err != nil {
		logger.Fatal().Err(err).Msgf("failed to load settings %q", cfg.Server.SettingsFile)
	}

	eng := engine.New(toEngineSettings(settingsMgr.Get()), engine.Callbacks{
		LogInfo:  func(msg string) { logger.Info().Msg(msg) },
		LogError: func(msg string) { logger.Error().Msg(msg) },
		OnProxyFailure: func(host string, port int, message string) {
			logger.Warn().Str("host", host).Int("port", port).Msg(message)
		},
		OnProxyReactivated: func(host string, port int) {
			logger.Info().Str("host", host).Int("port", port).Msg("proxy reactivated")
		},
	})
	eng.UpdateProxies(proxies)

	settingsMgr.Register(engineSettingsSubscriber{eng})

	if err := eng.Start(cfg.Server.ListenAddr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start engine")
	}
	logger.Info().Str("addr", cfg.Server.ListenAddr).Msg("socksrotated listening")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logger.Info().Msg("signal received, shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := eng.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("engine stop reported an error")
	}
}

// engineSettingsSubscriber adapts settings.ConfigurableModule to the
// engine's UpdateSettings method.
type engineSettingsSubscriber struct {
	eng *engine.Engine
}

func (s engineSettingsSubscriber) OnSettingsUpdate(next *settings.EngineSettings) error {
	s.eng.UpdateSettings(toEngineSettings(next))
	return nil
}

func toEngineSettings(s *settings.EngineSettings) engine.Settings {
	mode := registry.Random
	if s.SelectionMode == "round_robin" {
		mode = registry.RoundRobin
	}
	return engine.Settings{
		BufferSize:                s.BufferSize,
		IdleTimeoutSeconds:        s.IdleTimeoutSeconds,
		MaxConnectionsPerProxy:    s.MaxConnectionsPerProxy,
		LoggingEnabled:            s.LoggingEnabled,
		BypassCollaboratorEnabled: s.BypassCollaboratorEnabled,
		BypassDomains:             s.BypassDomains,
		SelectionMode:             mode,
	}
}
