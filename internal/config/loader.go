package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configuration from a single file or from every regular file in
// a directory, merging fragments in directory order.
//
// A file that cannot be parsed or carries invalid settings is an error in
// single-file mode. In directory mode it contributes nothing and is reported
// in Config.Warnings, so one bad fragment never drops the others' webhooks.
func Load(source string) (*Config, error) {
	absPath, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", source, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config source not found: %s: %w", absPath, err)
	}

	cfg := &Config{}
	if !info.IsDir() {
		frag, err := LoadFile(absPath)
		if err != nil {
			return nil, err
		}
		cfg.Merge(frag)
		cfg.Fragments = []string{absPath}
	} else {
		files, err := Files(absPath)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			frag, err := LoadFile(path)
			if err == nil {
				err = frag.validateFragment()
			}
			if err != nil {
				cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("skipping %s: %v", filepath.Base(path), err))
				continue
			}
			cfg.Merge(frag)
			cfg.Fragments = append(cfg.Fragments, path)
		}
	}

	cfg.Source = absPath
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Warnings = append(cfg.Warnings, cfg.webhookWarnings()...)

	return cfg, nil
}

// LoadFile parses one configuration fragment. Webhook paths are normalized and
// relative script paths are resolved against the file's directory.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	frag, err := parseFragment(interpolateEnv(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range frag.Webhooks {
		hook := &frag.Webhooks[i]
		hook.Path = NormalizePath(hook.Path)
		if hook.Script != "" && !filepath.IsAbs(hook.Script) {
			hook.Script = filepath.Join(dir, hook.Script)
		}
	}
	return frag, nil
}

// parseFragment tries TOML, then YAML, then JSON. The first format that
// accepts the content wins.
func parseFragment(content string) (*Config, error) {
	var tomlCfg Config
	_, tomlErr := toml.Decode(content, &tomlCfg)
	if tomlErr == nil {
		return &tomlCfg, nil
	}

	var yamlCfg Config
	yamlErr := yaml.Unmarshal([]byte(content), &yamlCfg)
	if yamlErr == nil {
		return &yamlCfg, nil
	}

	var jsonCfg Config
	jsonErr := json.Unmarshal([]byte(content), &jsonCfg)
	if jsonErr == nil {
		return &jsonCfg, nil
	}

	return nil, errors.Join(
		fmt.Errorf("toml: %w", tomlErr),
		fmt.Errorf("yaml: %w", yamlErr),
		fmt.Errorf("json: %w", jsonErr),
	)
}

// NormalizePath returns p with a single leading slash. Empty stays empty.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return "/" + strings.TrimLeft(p, "/")
}

// interpolateEnv replaces ${VAR} with the environment value. Unset variables
// are left as-is. ${{ ... }} template references never match.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func applyDefaults(cfg *Config) error {
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return nil
}
