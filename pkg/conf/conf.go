package conf

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/arcade-daq/waveflow/pkg/log"
	"github.com/arcade-daq/waveflow/pkg/retry"
)

/**
 * @author: gagral.x@gmail.com
 * @time: 2024/9/8 20:22
 * @file: config.go
 * @description: config
 */

func init() {
	viper.AutomaticEnv()
}

// LoadConfigFile reads a single config document (device, Buffer Manager, or
// Pulse Filter) by name from confDir and unmarshals it into cfg.
// The format is detected from the file extension (json/yaml/toml); viper
// does the detection so callers never branch on format.
//
// A transient read failure (e.g. the file momentarily locked by an editor
// save) is retried a few times before being treated as fatal. A missing file
// is fatal at once; a malformed file fails every attempt and is fatal once
// the retries are used up.
func LoadConfigFile(confDir, name string, cfg interface{}) (interface{}, error) {
	cfgValue := reflect.ValueOf(cfg)
	if cfgValue.Kind() != reflect.Ptr || cfgValue.IsNil() {
		return nil, errors.New("cfg must be a pointer")
	}

	vCfg := viper.New()
	vCfg.AddConfigPath(confDir)
	vCfg.SetConfigName(name)

	err := retry.Do(context.Background(), func(ctx context.Context) error {
		return vCfg.ReadInConfig()
	}, retry.WithMaxAttempts(3), retry.WithBackoff(retry.Fixed(50*time.Millisecond)), retry.WithRetryIf(retryableReadError))
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q in %q: %w", name, confDir, err)
	}

	if err := vCfg.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration file %q: %w", name, err)
	}

	// Buffer Manager and Pulse Filter configs may be hot-edited between runs
	// (e.g. to change logTime or pulseShape without a restart of the display
	// subprocesses); re-unmarshal on change and let the caller observe the
	// updated struct through the same pointer.
	vCfg.WatchConfig()
	vCfg.OnConfigChange(func(e fsnotify.Event) {
		log.Infow("configuration file changed, reloading", "file", e.Name)
		if err := vCfg.Unmarshal(cfg); err != nil {
			log.Errorw("failed to reload configuration file", "file", e.Name, "error", err)
		}
	})

	log.Infow("configuration loaded", "name", name, "path", confDir)

	return cfg, nil
}

// retryableReadError tells retry.Do apart a missing config file (fatal,
// never worth retrying) from a transient read failure such as an editor
// momentarily holding the file mid-save.
func retryableReadError(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return false
	}
	return retry.IsRetryableError(err)
}

func GetString(key string) string {
	return viper.GetString(key)
}

func GetInt(key string) int {
	return viper.GetInt(key)
}

func GetInt64(key string) int64 {
	return viper.GetInt64(key)
}

func GetBool(key string) bool {
	return viper.GetBool(key)
}

func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

func GetUint(key string) uint {
	return viper.GetUint(key)
}

func GetUint64(key string) uint64 {
	return viper.GetUint64(key)
}

func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

func GetStringMap(key string) map[string]interface{} {
	return viper.GetStringMap(key)
}

func GetStringMapString(key string) map[string]string {
	return viper.GetStringMapString(key)
}

func GetStringMapStringSlice(key string) map[string][]string {
	return viper.GetStringMapStringSlice(key)
}

func GetTime(key string) time.Time {
	return viper.GetTime(key)
}

func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
