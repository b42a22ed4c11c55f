package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"lowkeyllama/internal/common/fsutil"
)

// Load reads a configuration file based on its extension and overlays it on
// Default(). Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, fmt.Errorf("empty config path")
	}
	m, err := readMap(path)
	if err != nil {
		return Config{}, err
	}
	return fromMap(m)
}

// LoadLayered deep-merges the given files in order over Default(). Later files
// win. Missing files are skipped and reported in the returned list; any other
// read or parse error aborts.
func LoadLayered(paths ...string) (Config, []string, error) {
	merged := map[string]any{}
	var skipped []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		m, err := readMap(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				skipped = append(skipped, p)
				continue
			}
			return Config{}, skipped, err
		}
		merged = mergeMaps(merged, m)
	}
	cfg, err := fromMap(merged)
	return cfg, skipped, err
}

func readMap(path string) (map[string]any, error) {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return m, nil
}

// fromMap overlays m on the defaults. Both sides go through JSON so the merge
// sees one set of key names.
func fromMap(m map[string]any) (Config, error) {
	base, err := toMap(Default())
	if err != nil {
		return Config{}, err
	}
	b, err := json.Marshal(mergeMaps(base, m))
	if err != nil {
		return Config{}, fmt.Errorf("encode merged config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode merged config: %w", err)
	}
	return cfg, nil
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// mergeMaps merges src into dst recursively; nested objects merge, everything
// else (scalars, lists) is replaced.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = mergeMaps(dm, sm)
				continue
			}
			dst[k] = mergeMaps(map[string]any{}, sm)
			continue
		}
		dst[k] = sv
	}
	return dst
}

// ApplyEnv overrides fields from environment variables:
// LOWKEYLLAMA_LOG_LEVEL, LOWKEYLLAMA_API_HOST, LOWKEYLLAMA_API_PORT,
// LOWKEYLLAMA_DEFAULT_MODEL and OLLAMA_HOST (host, host:port or URL).
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("LOWKEYLLAMA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("LOWKEYLLAMA_API_HOST"); v != "" {
		c.API.Host = v
	}
	if v := getenv("LOWKEYLLAMA_API_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOWKEYLLAMA_API_PORT: %w", err)
		}
		c.API.Port = n
	}
	if v := getenv("LOWKEYLLAMA_DEFAULT_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := getenv("OLLAMA_HOST"); v != "" {
		host, port, err := parseHostPort(v)
		if err != nil {
			return fmt.Errorf("OLLAMA_HOST: %w", err)
		}
		c.Backend.Host = host
		if port != 0 {
			c.Backend.Port = port
		}
	}
	return nil
}

func parseHostPort(v string) (string, int, error) {
	if strings.Contains(v, "://") {
		u, err := url.Parse(v)
		if err != nil {
			return "", 0, err
		}
		v = u.Host
	}
	host, portStr, err := net.SplitHostPort(v)
	if err != nil {
		// bare host
		return strings.Trim(v, "[]"), 0, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// Marshal renders the config in the given format (yaml, json or toml).
func (c Config) Marshal(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml", "":
		return yaml.Marshal(c)
	case "json":
		return json.MarshalIndent(c, "", "  ")
	case "toml":
		return toml.Marshal(c)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
