package declwire

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// Config carries the tunable settings of the component manager and the
// reference host wiring in cmd/declwire. Zero values are filled from the
// default struct tags before any file content is applied.
type Config struct {
	// Header is the manifest header listing descriptor paths.
	Header string `toml:"header" yaml:"header" json:"header" default:"DependencyManager-Component"`

	// StopTimeout bounds component teardown per module.
	StopTimeout time.Duration `toml:"stop_timeout" yaml:"stop_timeout" json:"stop_timeout" default:"30s"`

	// ModuleDir is the root directory scanned for modules by the
	// directory-backed host.
	ModuleDir string `toml:"module_dir" yaml:"module_dir" json:"module_dir" default:"modules"`

	// RescanSpec is an optional cron expression for periodic module
	// rescans, covering file events the watcher may have missed.
	RescanSpec string `toml:"rescan_spec" yaml:"rescan_spec" json:"rescan_spec"`

	// InspectAddr is the listen address of the inspection HTTP endpoint.
	// Empty disables the endpoint.
	InspectAddr string `toml:"inspect_addr" yaml:"inspect_addr" json:"inspect_addr" default:":8910"`
}

// LoadConfig reads a configuration file, chosen by extension (.toml, .yaml,
// .yml, .json), on top of the struct-tag defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := ApplyDefaults(cfg); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse toml config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse json config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, ext)
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued exported fields of a struct pointer from
// their `default` tags. String values are coerced to the field type.
func ApplyDefaults(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrConfigNotStructPointer
	}

	elem := v.Elem()
	for i := 0; i < elem.NumField(); i++ {
		field := elem.Type().Field(i)
		value := elem.Field(i)

		tag, ok := field.Tag.Lookup("default")
		if !ok || !value.CanSet() || !value.IsZero() {
			continue
		}

		// Durations carry unit suffixes that plain integer coercion
		// cannot handle.
		if field.Type == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(tag)
			if err != nil {
				return fmt.Errorf("%w: field %s: %v", ErrDefaultValueParse, field.Name, err)
			}
			value.Set(reflect.ValueOf(d))
			continue
		}

		converted, err := cast.FromType(tag, field.Type)
		if err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrDefaultValueParse, field.Name, err)
		}
		value.Set(reflect.ValueOf(converted))
	}
	return nil
}
