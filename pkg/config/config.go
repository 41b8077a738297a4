package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/qubi-project/qubi/pkg/config/types"
)

const (
	environmentVariablePrefix = "QUBI"

	configType = "yaml"
	configName = "config"
)

var environmentVariableReplace = strings.NewReplacer(".", "_")

// Default is the configuration a node starts with when nothing is set.
func Default() types.QubiConfig {
	return types.QubiConfig{
		API: types.APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Store: types.StoreConfig{
			Type: "boltdb",
			Path: "qubi.db",
		},
		Orchestrator: types.OrchestratorConfig{
			Workers:              4,
			QueueDepth:           256,
			RunTimeout:           0, // disabled; hardware queues can legitimately be slow
			HousekeepingInterval: time.Minute,
		},
		Backends: types.BackendsConfig{
			Simulator: types.SimulatorConfig{
				Enabled: true,
			},
			IonQ: types.RemoteConfig{
				Enabled:      true,
				PollInterval: 2 * time.Second,
			},
			IBM: types.RemoteConfig{
				Enabled:      true,
				PollInterval: 5 * time.Second,
			},
		},
	}
}

// Load reads the node configuration from the given directory, layering
// QUBI_* environment variables over the config file over the defaults. A
// missing config file is fine; defaults and the environment still apply.
func Load(path string) (types.QubiConfig, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	if path == "" {
		path = "."
	}
	v.AddConfigPath(path)
	v.SetEnvPrefix(environmentVariablePrefix)
	v.SetEnvKeyReplacer(environmentVariableReplace)
	v.AutomaticEnv()

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return types.QubiConfig{}, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}

	var config types.QubiConfig
	if err := v.Unmarshal(&config); err != nil {
		return types.QubiConfig{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper, defaults types.QubiConfig) {
	v.SetDefault("api.host", defaults.API.Host)
	v.SetDefault("api.port", defaults.API.Port)
	v.SetDefault("store.type", defaults.Store.Type)
	v.SetDefault("store.path", defaults.Store.Path)
	v.SetDefault("orchestrator.workers", defaults.Orchestrator.Workers)
	v.SetDefault("orchestrator.queue_depth", defaults.Orchestrator.QueueDepth)
	v.SetDefault("orchestrator.run_timeout", defaults.Orchestrator.RunTimeout)
	v.SetDefault("orchestrator.housekeeping_interval", defaults.Orchestrator.HousekeepingInterval)
	v.SetDefault("backends.simulator.enabled", defaults.Backends.Simulator.Enabled)
	v.SetDefault("backends.simulator.seed", defaults.Backends.Simulator.Seed)
	v.SetDefault("backends.ionq.enabled", defaults.Backends.IonQ.Enabled)
	v.SetDefault("backends.ionq.base_url", defaults.Backends.IonQ.BaseURL)
	v.SetDefault("backends.ionq.poll_interval", defaults.Backends.IonQ.PollInterval)
	v.SetDefault("backends.ibm.enabled", defaults.Backends.IBM.Enabled)
	v.SetDefault("backends.ibm.base_url", defaults.Backends.IBM.BaseURL)
	v.SetDefault("backends.ibm.poll_interval", defaults.Backends.IBM.PollInterval)
	v.SetDefault("credentials.path", defaults.Credentials.Path)
}
