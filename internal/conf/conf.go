// Package conf holds the bootstrap configuration scanned by kratos config.
package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap is the root of configs/config.yaml.
type Bootstrap struct {
	Server  *Server  `json:"server"`
	Data    *Data    `json:"data"`
	Pricing *Pricing `json:"pricing"`
	Log     *Log     `json:"log"`
	// Metadata is published with the kratos app instance.
	Metadata map[string]string `json:"metadata"`
}

// GetMetadata returns nil for a nil receiver.
func (b *Bootstrap) GetMetadata() map[string]string {
	if b == nil {
		return nil
	}
	return b.Metadata
}

// Log output settings; rotation limits stay at the logger defaults.
type Log struct {
	Level    string `json:"level"`
	Format   string `json:"format"`
	Output   string `json:"output"`
	FilePath string `json:"file_path"`
	// DisableConsole turns off the console copy when output is a file.
	DisableConsole bool `json:"disable_console"`
}

func (l *Log) GetLevel() string {
	if l == nil || l.Level == "" {
		return "info"
	}
	return l.Level
}

func (l *Log) GetFormat() string {
	if l == nil || l.Format == "" {
		return "json"
	}
	return l.Format
}

func (l *Log) GetOutput() string {
	if l == nil || l.Output == "" {
		return "stdout"
	}
	return l.Output
}

// GetFilePath falls back to def when unset.
func (l *Log) GetFilePath(def string) string {
	if l == nil || l.FilePath == "" {
		return def
	}
	return l.FilePath
}

func (l *Log) GetEnableConsole() bool {
	return l == nil || !l.DisableConsole
}

// Server transport settings.
type Server struct {
	Http *Server_HTTP `json:"http"`
	Grpc *Server_GRPC `json:"grpc"`
}

type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

type Server_GRPC struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

// Data settings for storage and messaging.
type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
	Rocketmq *Data_Rocketmq `json:"rocketmq"`
}

type Data_Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
	// AutoMigrate creates/updates tables on startup.
	AutoMigrate bool `json:"auto_migrate"`
}

type Data_Redis struct {
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	Db           int       `json:"db"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

type Data_Rocketmq struct {
	Enabled     bool     `json:"enabled"`
	NameServers []string `json:"name_servers"`
	GroupName   string   `json:"group_name"`
	RetryTimes  int32    `json:"retry_times"`
	// HireTopic carries hire-confirmed events published by the ATS.
	HireTopic string `json:"hire_topic"`
	// LedgerTopic receives every applied ledger entry.
	LedgerTopic string `json:"ledger_topic"`
}

// Pricing engine tunables.
type Pricing struct {
	// CreditCosts is the credit price of one unit of a quota once the plan allowance is used up.
	CreditCosts            map[string]int64 `json:"credit_costs"`
	CatalogRefreshInterval *Duration        `json:"catalog_refresh_interval"`
	LockExpiry             *Duration        `json:"lock_expiry"`
	LowBalanceThreshold    int64            `json:"low_balance_threshold"`
}

// Duration accepts either a Go duration string ("5s") or a number of seconds.
type Duration struct {
	time.Duration
}

// AsDuration returns the wrapped value; a nil receiver yields zero.
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
