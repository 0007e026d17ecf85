// config.go: ScreamGuard configuration structures and loading
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
)

// AppName is used for config directories, the HTTP user agent and the MQTT client id.
const AppName = "screamguard"

// ModelSettings selects and locates the classifier artifact.
type ModelSettings struct {
	Backend    string `yaml:"backend"`    // "linear" (JSON artifact) or "tflite"
	Path       string `yaml:"path"`       // JSON artifact, or .tflite model
	ScalerPath string `yaml:"scalerpath"` // tflite only: JSON sidecar with scaler and threshold
	Threads    int    `yaml:"threads"`    // tflite interpreter threads, 0 = runtime default
}

// AudioSettings controls upload handling.
type AudioSettings struct {
	UploadDir    string `yaml:"uploaddir"`    // temporary clip storage
	MaxDuration  int    `yaml:"maxduration"`  // seconds of audio decoded per clip, 0 = unlimited
	PurgeOnStart bool   `yaml:"purgeonstart"` // remove leftover uploads at startup
}

// EscalationSettings controls the sliding window aggregator.
type EscalationSettings struct {
	Window          time.Duration `yaml:"window"`          // detections older than this are pruned
	MinDetections   int           `yaml:"mindetections"`   // positives inside the window needed to escalate
	EmergencyNumber string        `yaml:"emergencynumber"` // number shown in approval payload and dialled by call channel
	CandidateTTL    time.Duration `yaml:"candidatettl"`    // how long a candidate awaits confirmation
}

// GoogleSettings configures the primary reverse geocoder.
type GoogleSettings struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"baseurl"`
}

// NominatimSettings configures the secondary reverse geocoder.
type NominatimSettings struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"baseurl"`
	UserAgent string `yaml:"useragent"` // required by the Nominatim usage policy
}

// IPInfoSettings configures IP based geolocation.
type IPInfoSettings struct {
	Enabled     bool    `yaml:"enabled"`
	BaseURL     string  `yaml:"baseurl"`
	PublicIPURL string  `yaml:"publicipurl"` // used when the client address is loopback or private
	RateLimit   float64 `yaml:"ratelimit"`   // lookups per second
	Burst       int     `yaml:"burst"`
}

// LocationSettings configures the location resolver chain.
type LocationSettings struct {
	GoogleMapsAPIKey string            `yaml:"googlemapsapikey"`
	IPInfoToken      string            `yaml:"ipinfotoken"`
	Timeout          time.Duration     `yaml:"timeout"`  // per provider, at most 5s
	CacheTTL         time.Duration     `yaml:"cachettl"` // geocode and IP lookup cache
	Google           GoogleSettings    `yaml:"google"`
	Nominatim        NominatimSettings `yaml:"nominatim"`
	IPInfo           IPInfoSettings    `yaml:"ipinfo"`
}

// SMSSettings configures the Twilio SMS channel.
type SMSSettings struct {
	Enabled    bool     `yaml:"enabled"`
	AccountSID string   `yaml:"accountsid"`
	AuthToken  string   `yaml:"authtoken"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

// EmailSettings configures the SMTP email channel.
type EmailSettings struct {
	Enabled    bool     `yaml:"enabled"`
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"` // defaults to Username
	Recipients []string `yaml:"recipients"`
	Encryption string   `yaml:"encryption"` // auto, none, explicittls, implicittls
	PlainText  bool     `yaml:"plaintext"`  // send text instead of HTML
}

// CallSettings configures the emergency call channel.
type CallSettings struct {
	Enabled  bool `yaml:"enabled"`
	Simulate bool `yaml:"simulate"` // log the call instead of placing it
}

// MQTTSettings configures the optional MQTT alert channel.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"clientid"`
	Retain   bool   `yaml:"retain"`
	QoS      byte   `yaml:"qos"`
}

// NotificationSettings holds all escalation channels.
type NotificationSettings struct {
	Timeout time.Duration `yaml:"timeout"` // per channel
	SMS     SMSSettings   `yaml:"sms"`
	Email   EmailSettings `yaml:"email"`
	Call    CallSettings  `yaml:"call"`
	MQTT    MQTTSettings  `yaml:"mqtt"`
}

// SQLiteSettings configures the SQLite detection store.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MySQLSettings configures the MySQL detection store.
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

// MongoDBSettings configures the MongoDB detection store.
type MongoDBSettings struct {
	Enabled    bool   `yaml:"enabled"`
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// OutputSettings selects where detections are persisted. Exactly one store is enabled.
type OutputSettings struct {
	SQLite  SQLiteSettings  `yaml:"sqlite"`
	MySQL   MySQLSettings   `yaml:"mysql"`
	MongoDB MongoDBSettings `yaml:"mongodb"`
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	BodyLimit       string        `yaml:"bodylimit"`      // echo BodyLimit syntax, e.g. "32M"
	RateLimit       float64       `yaml:"ratelimit"`      // requests per second per client, 0 disables
	TrustedProxies  []string      `yaml:"trustedproxies"` // CIDRs or addresses allowed to set X-Forwarded-For
	ShutdownTimeout time.Duration `yaml:"shutdowntimeout"`
	Debug           bool          `yaml:"debug"`
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// Settings is the root of the ScreamGuard configuration.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name string `yaml:"name"` // node name, included in alerts and logs
	} `yaml:"main"`

	Model        ModelSettings        `yaml:"model"`
	Audio        AudioSettings        `yaml:"audio"`
	Escalation   EscalationSettings   `yaml:"escalation"`
	Location     LocationSettings     `yaml:"location"`
	Notification NotificationSettings `yaml:"notification"`
	Output       OutputSettings       `yaml:"output"`
	WebServer    WebServerSettings    `yaml:"webserver"`
	Logging      logger.LoggingConfig `yaml:"logging"`
	Sentry       SentrySettings       `yaml:"sentry"`
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	configFile string
	envFiles   []string
	flags      *pflag.FlagSet
	flagKeys   map[string]string
}

// WithConfigFile loads an explicit config file instead of searching the default paths.
func WithConfigFile(path string) LoadOption {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFiles replaces the default ".env" dotenv file list.
func WithEnvFiles(paths ...string) LoadOption {
	return func(o *loadOptions) { o.envFiles = paths }
}

// WithFlags binds command line flags. flagKeys maps a flag name to its config key;
// flags absent from the map bind to a key equal to the flag name.
func WithFlags(flags *pflag.FlagSet, flagKeys map[string]string) LoadOption {
	return func(o *loadOptions) {
		o.flags = flags
		o.flagKeys = flagKeys
	}
}

var (
	settingsMu      sync.RWMutex
	currentSettings *Settings
)

// Load reads configuration from defaults, the config file, .env, the environment
// and flags, in increasing order of precedence. The result is validated.
func Load(opts ...LoadOption) (*Settings, error) {
	o := loadOptions{envFiles: []string{".env"}}
	for _, opt := range opts {
		opt(&o)
	}

	// dotenv values never override variables already set in the environment
	for _, f := range o.envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("env_file", f).
				Build()
		}
	}

	v := viper.New()
	setDefaults(v)

	if err := readConfigFile(v, o.configFile); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("SCREAMGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if o.flags != nil {
		if err := bindFlags(v, o.flags, o.flagKeys); err != nil {
			return nil, err
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	normalize(settings)

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsMu.Lock()
	currentSettings = settings
	settingsMu.Unlock()

	return settings, nil
}

// GetSettings returns the most recently loaded settings, or nil before Load.
func GetSettings() *Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return currentSettings
}

func readConfigFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range defaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.New(fmt.Errorf("error reading config file: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("config_file", configFile).
			Build()
	}
	return nil
}

// defaultConfigPaths lists the directories searched for config.yaml.
func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", AppName))
	}
	return append(paths, filepath.Join("/etc", AppName))
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, flagKeys map[string]string) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		key := f.Name
		if mapped, ok := flagKeys[f.Name]; ok {
			key = mapped
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("flag", f.Name).
				Build()
		}
	})
	return bindErr
}

// normalize trims list entries coming from comma separated env values and fills
// values derived from other settings.
func normalize(s *Settings) {
	s.Notification.SMS.Recipients = cleanList(s.Notification.SMS.Recipients)
	s.Notification.Email.Recipients = cleanList(s.Notification.Email.Recipients)

	if s.Notification.Email.From == "" {
		s.Notification.Email.From = s.Notification.Email.Username
	}
	if s.Notification.MQTT.ClientID == "" {
		s.Notification.MQTT.ClientID = AppName
	}
	s.Model.Backend = strings.ToLower(strings.TrimSpace(s.Model.Backend))
	s.Notification.Email.Encryption = strings.ToLower(strings.TrimSpace(s.Notification.Email.Encryption))
}

func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		for part := range strings.SplitSeq(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
