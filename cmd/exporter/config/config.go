package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/grafana/rgw-exporter/pkg/rgw/client"
	"github.com/grafana/rgw-exporter/pkg/rgw/signer"
	"github.com/grafana/rgw-exporter/pkg/scheduler"
	"github.com/grafana/rgw-exporter/pkg/usage"
	"github.com/grafana/rgw-exporter/pkg/utils"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Flag names. The matching environment variable is the upper-cased name with
// dashes replaced by underscores, e.g. admin-url -> ADMIN_URL.
const (
	FlagAccessKey          = "s3-access-key"
	FlagSecretKey          = "s3-secret-key"
	FlagRegion             = "s3-region"
	FlagAdminURL           = "admin-url"
	FlagVerifySSL          = "verify-ssl"
	FlagRoundGBs           = "round-gbs"
	FlagUnit               = "unit"
	FlagHostHeader         = "host-header"
	FlagCollectionMode     = "collection-mode"
	FlagCollectionInterval = "collection-interval"
	FlagFetchTimeout       = "fetch-timeout"
	FlagServerAddress      = "server-address"
	FlagServerPath         = "server-path"
	FlagServerTimeout      = "server-timeout"
	FlagLogLevel           = "log-level"
	FlagLogOutput          = "log-output"
	FlagLogType            = "log-type"
)

type Config struct {
	Credentials struct {
		AccessKey string
		SecretKey string
		Region    string
	}
	Endpoint struct {
		AdminURL      string
		VerifySSL     bool
		SetHostHeader bool
		Timeout       time.Duration
	}
	Metrics struct {
		Unit     usage.Unit
		RoundGBs bool
	}
	Collector struct {
		Mode     scheduler.Mode
		Interval time.Duration
	}
	Server struct {
		Address string
		Path    string
		Timeout time.Duration
	}
	Logging struct {
		Level  string
		Output string
		Type   string
	}
}

// Flags registers every setting on fs with its default.
func Flags(fs *pflag.FlagSet) {
	fs.String(FlagAccessKey, "", "Access key used to sign admin API requests. Required.")
	fs.String(FlagSecretKey, "", "Secret key used to sign admin API requests. Required.")
	fs.String(FlagRegion, signer.DefaultRegion, "Region used in the request signature scope.")
	fs.String(FlagAdminURL, "", "Base URL of the RGW admin API, e.g. https://rgw.example.com/admin. Required.")
	fs.Bool(FlagVerifySSL, false, "Verify the TLS certificate of the admin API.")
	fs.Bool(FlagRoundGBs, true, "Round gigabyte values up to the next integer.")
	fs.String(FlagUnit, string(usage.Gigabytes), "Unit of the bucket size gauge: gb or kb.")
	fs.Bool(FlagHostHeader, true, "Send the admin URL hostname as an explicit Host header.")
	fs.String(FlagCollectionMode, string(scheduler.OnDemand), "When to collect: on-demand (every scrape) or interval (background loop).")
	fs.Duration(FlagCollectionInterval, utils.DefaultCollectionInterval, "Period of the background loop in interval mode.")
	fs.Duration(FlagFetchTimeout, client.DefaultTimeout, "Timeout of a single admin API request.")
	fs.String(FlagServerAddress, ":9142", "Address for the server to listen on.")
	fs.String(FlagServerPath, "/metrics", "Path the metrics are served on.")
	fs.Duration(FlagServerTimeout, 30*time.Second, "Graceful shutdown timeout of the server.")
	fs.String(FlagLogLevel, "info", "Log level: debug, info, warn or error.")
	fs.String(FlagLogOutput, "stdout", "Log output stream: stdout or stderr.")
	fs.String(FlagLogType, "text", "Log format: text or json.")
}

// NewViper binds fs to a viper instance that also reads the environment.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	return v, nil
}

// Load reads and validates the configuration. Precedence is flag, then
// environment, then default.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	var errs []error

	cfg.Credentials.AccessKey = v.GetString(FlagAccessKey)
	cfg.Credentials.SecretKey = v.GetString(FlagSecretKey)
	cfg.Credentials.Region = v.GetString(FlagRegion)

	cfg.Endpoint.AdminURL = v.GetString(FlagAdminURL)
	cfg.Endpoint.VerifySSL = v.GetBool(FlagVerifySSL)
	cfg.Endpoint.SetHostHeader = v.GetBool(FlagHostHeader)
	cfg.Endpoint.Timeout = v.GetDuration(FlagFetchTimeout)

	unit, err := usage.ParseUnit(v.GetString(FlagUnit))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Metrics.Unit = unit
	cfg.Metrics.RoundGBs = v.GetBool(FlagRoundGBs)

	mode, err := scheduler.ParseMode(v.GetString(FlagCollectionMode))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Collector.Mode = mode
	cfg.Collector.Interval = v.GetDuration(FlagCollectionInterval)

	cfg.Server.Address = v.GetString(FlagServerAddress)
	cfg.Server.Path = v.GetString(FlagServerPath)
	cfg.Server.Timeout = v.GetDuration(FlagServerTimeout)

	cfg.Logging.Level = v.GetString(FlagLogLevel)
	cfg.Logging.Output = v.GetString(FlagLogOutput)
	cfg.Logging.Type = v.GetString(FlagLogType)

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return &cfg, nil
}

// Validate reports every structurally invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Credentials.AccessKey == "" {
		errs = append(errs, fmt.Errorf("%s is required", FlagAccessKey))
	}
	if c.Credentials.SecretKey == "" {
		errs = append(errs, fmt.Errorf("%s is required", FlagSecretKey))
	}
	if c.Endpoint.AdminURL == "" {
		errs = append(errs, fmt.Errorf("%s is required", FlagAdminURL))
	} else if u, err := url.Parse(c.Endpoint.AdminURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s %q must be an absolute http or https URL", FlagAdminURL, c.Endpoint.AdminURL))
	}
	if c.Endpoint.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", FlagFetchTimeout))
	}
	if c.Collector.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", FlagCollectionInterval))
	}
	if !strings.HasPrefix(c.Server.Path, "/") || c.Server.Path == "/" {
		errs = append(errs, fmt.Errorf("%s %q must start with / and not be the root path", FlagServerPath, c.Server.Path))
	}
	return errors.Join(errs...)
}
