package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Oracle   OracleConfig
	Events   EventsConfig
	// DeploymentFile points at the YAML describing assets, oracles and the vester account
	DeploymentFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// OracleConfig holds time oracle client settings
type OracleConfig struct {
	Timeout time.Duration
}

// EventsConfig holds event fan-out settings. An empty RedisAddr disables the Redis sink.
type EventsConfig struct {
	// LogEvents mirrors every committed event to the zap logger
	LogEvents   bool
	RedisAddr   string
	RedisStream string
	MaxLen      int64
}

// FormanceConfig holds connection settings for a Formance Stack ledger
type FormanceConfig struct {
	StackURL     string `yaml:"stack_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	LedgerName   string `yaml:"ledger"`
}

// AssetDeployment describes one asset ledger
type AssetDeployment struct {
	Id       string   `yaml:"id"`
	Symbol   string   `yaml:"symbol"`
	Decimals int      `yaml:"decimals"`
	Backend  string   `yaml:"backend"`
	Deny     []string `yaml:"deny"`
}

// OracleDeployment describes a reachable time oracle
type OracleDeployment struct {
	Account   string `yaml:"account"`
	Transport string `yaml:"transport"`
	Endpoint  string `yaml:"endpoint"`
	Start     uint64 `yaml:"start"`
	End       uint64 `yaml:"end"`
}

// Deployment wires accounts, assets and oracles together
type Deployment struct {
	VesterAccount string             `yaml:"vester_account"`
	Owner         string             `yaml:"owner"`
	Assets        []AssetDeployment  `yaml:"assets"`
	Oracles       []OracleDeployment `yaml:"oracles"`
	Formance      FormanceConfig     `yaml:"formance"`
}
