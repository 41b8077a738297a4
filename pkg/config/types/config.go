package types

import "time"

// QubiConfig is the full configuration of a qubi node.
type QubiConfig struct {
	API          APIConfig          `mapstructure:"api"`
	Store        StoreConfig        `mapstructure:"store"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Backends     BackendsConfig     `mapstructure:"backends"`
	Credentials  CredentialsConfig  `mapstructure:"credentials"`
}

type APIConfig struct {
	// Host is the address the public API binds to.
	Host string `mapstructure:"host"`
	// Port is the port the public API listens on.
	Port uint16 `mapstructure:"port"`
}

type StoreConfig struct {
	// Type selects the run store implementation: boltdb or inmemory.
	Type string `mapstructure:"type"`
	// Path is the bolt database file. Ignored for the in-memory store.
	Path string `mapstructure:"path"`
}

type OrchestratorConfig struct {
	// Workers is the number of parallel run workers.
	Workers int `mapstructure:"workers"`
	// QueueDepth bounds the number of runs waiting for a worker.
	QueueDepth int `mapstructure:"queue_depth"`
	// RunTimeout fails runs stuck RUNNING for longer than this. Zero
	// disables the sweep.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	// HousekeepingInterval is how often stuck runs are swept for.
	HousekeepingInterval time.Duration `mapstructure:"housekeeping_interval"`
}

type BackendsConfig struct {
	Simulator SimulatorConfig `mapstructure:"simulator"`
	IonQ      RemoteConfig    `mapstructure:"ionq"`
	IBM       RemoteConfig    `mapstructure:"ibm"`
}

type SimulatorConfig struct {
	// Enabled installs the local statevector simulator.
	Enabled bool `mapstructure:"enabled"`
	// Seed makes simulator sampling deterministic when non-zero.
	Seed int64 `mapstructure:"seed"`
}

type RemoteConfig struct {
	// Enabled installs the backend family on this node.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL overrides the vendor API endpoint, mainly for tests.
	BaseURL string `mapstructure:"base_url"`
	// PollInterval is how often in-flight vendor jobs are polled.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type CredentialsConfig struct {
	// Path is the YAML file of per-user API tokens. When empty, tokens are
	// read from the environment only.
	Path string `mapstructure:"path"`
}
