package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/flagx"
	"github.com/dmitrijs2005/smartyedu/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration so
// they can be written as "5s" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP string         `json:"endpoint_addr_http"`
	DatabaseDSN      string         `json:"database_dsn"`
	SecretKey        string         `json:"secret_key"`
	ShutdownTimeout  timex.Duration `json:"shutdown_timeout"`
	LogFormat        string         `json:"log_format"`
}

// parseJson loads the file named by -c or -config into cfg. Keys absent from
// the file leave cfg untouched. Read or decode failures panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFilePath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.EndpointAddrGRPC != "" {
		cfg.EndpointAddrGRPC = jc.EndpointAddrGRPC
	}
	if jc.EndpointAddrHTTP != "" {
		cfg.EndpointAddrHTTP = jc.EndpointAddrHTTP
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.SecretKey != "" {
		cfg.SecretKey = jc.SecretKey
	}
	if jc.ShutdownTimeout.Duration != 0 {
		cfg.ShutdownTimeout = time.Duration(jc.ShutdownTimeout.Duration)
	}
	if jc.LogFormat != "" {
		cfg.LogFormat = jc.LogFormat
	}
}
