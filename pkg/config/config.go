package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5" validate:"min=1"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" default:"./library.db" validate:"required"`

	// DefaultLoanDays is the loan period used when a loan is opened without
	// an explicit one.
	DefaultLoanDays int `koanf:"default_loan_days" default:"30" validate:"min=1"`

	CoverDir        string        `koanf:"cover_dir" default:"./covers"`
	MetadataBaseURL string        `koanf:"metadata_base_url" default:"https://openlibrary.org" validate:"required,url"`
	MetadataTimeout time.Duration `koanf:"metadata_timeout" default:"10s"`
}

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "./shelfkeeper.yaml"
)

// New builds the config from struct defaults, then the YAML config file (if
// it exists), then environment variables named after the upper-cased keys.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	known := knownKeys()
	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config pointing at a private in-memory database.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.DatabaseConnectRetryCount = 1
	cfg.DatabaseConnectRetryDelay = 0
	cfg.CoverDir = os.TempDir()
	return cfg
}

func validate(cfg *Config) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("koanf")
	})
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.WithStack(err)
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return errors.Errorf("missing required config: set %s or %q in the config file", strings.ToUpper(fe.Field()), fe.Field())
	}
	return errors.Errorf("invalid config value for %q (%s=%s)", fe.Field(), fe.Tag(), fe.Param())
}

// knownKeys lists the config keys so that only those environment variables
// are picked up.
func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		fld := t.Field(i)
		keys[fld.Tag.Get("koanf")] = struct{}{}
	}
	return keys
}
