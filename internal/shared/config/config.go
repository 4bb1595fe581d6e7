// Package config loads the static, process-start configuration (A2/A3):
// an ini-backed listen address and log level, plus the JSON-backed
// proxy list spec.md §3 treats as externally persisted but that the
// core must still be handed as a loaded []*ProxyEntry.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/ini.v1"

	"socksrotate/internal/core/registry"
	"socksrotate/internal/shared/logger"
)

// StaticConfig is the ini-backed startup document: the listen address
// and file locations are fixed for the process lifetime, unlike the
// settings.json surface that settings.SettingsManager hot-reloads.
type StaticConfig struct {
	Server ServerConf     `ini:"server"`
	Log    logger.LogConf `ini:"log"`
}

type ServerConf struct {
	ListenAddr    string `ini:"listen_addr"`
	ProxyListFile string `ini:"proxy_list_file"`
	SettingsFile  string `ini:"settings_file"`
}

// LoadIni parses fileName into cfg.
func LoadIni(cfg *StaticConfig, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return fmt.Errorf("load ini %s: %w", fileName, err)
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return fmt.Errorf("map ini %s: %w", fileName, err)
	}
	return nil
}

// proxyRecord is the on-disk shape of one proxies.json entry
// (SPEC_FULL.md §3).
type proxyRecord struct {
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Active   bool   `json:"active"`
}

// LoadProxyList reads fileName and validates it into registry entries.
// A missing file is not an error: it returns an empty list, since the
// host may start with no proxies configured yet. `direct` entries are
// rejected if present (they are synthesized per-request, never
// persisted); a socks5/http entry with only one of username/password
// set is rejected too (SPEC_FULL.md §9's load-time credential guard).
func LoadProxyList(fileName string) ([]*registry.ProxyEntry, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return []*registry.ProxyEntry{}, nil
		}
		return nil, fmt.Errorf("read proxy list %s: %w", fileName, err)
	}

	var records []proxyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse proxy list %s: %w", fileName, err)
	}

	entries := make([]*registry.ProxyEntry, 0, len(records))
	for i, rec := range records {
		protocol := registry.Protocol(rec.Protocol)
		if protocol == registry.ProtocolDirect {
			return nil, fmt.Errorf("proxy list entry %d (%s:%d): direct entries must not be persisted", i, rec.Host, rec.Port)
		}
		if (rec.Username != "") != (rec.Password != "") {
			return nil, fmt.Errorf("proxy list entry %d (%s:%d): username and password must both be set or both empty", i, rec.Host, rec.Port)
		}
		entry := registry.NewProxyEntry(protocol, rec.Host, rec.Port, rec.Username, rec.Password)
		if !rec.Active {
			entry.Deactivate("loaded inactive from proxy list")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SaveProxyList writes entries back to fileName in the same shape
// LoadProxyList reads.
func SaveProxyList(fileName string, entries []*registry.ProxyEntry) error {
	records := make([]proxyRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, proxyRecord{
			Protocol: string(e.Protocol),
			Host:     e.Host,
			Port:     e.Port,
			Username: e.Username,
			Password: e.Password,
			Active:   e.Active(),
		})
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal proxy list: %w", err)
	}
	return os.WriteFile(fileName, data, 0644)
}
