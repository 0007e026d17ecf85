// defaults.go: default configuration values
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults shared with other packages.
const (
	DefaultEmergencyNumber  = "100"
	DefaultMinDetections    = 2
	DefaultWindow           = 30 * time.Second
	DefaultLocationTimeout  = 5 * time.Second
	MaxLocationTimeout      = 5 * time.Second
	DefaultChannelTimeout   = 10 * time.Second
	DefaultMongoDatabase    = "scream_detection_db"
	DefaultMongoCollection  = "scream_detections"
	DefaultMQTTTopic        = "screamguard/alerts"
	DefaultNominatimBaseURL = "https://nominatim.openstreetmap.org"
	DefaultGoogleBaseURL    = "https://maps.googleapis.com"
	DefaultIPInfoBaseURL    = "https://ipinfo.io"
	DefaultPublicIPURL      = "https://api.ipify.org?format=json"
)

// setDefaults sets default values for every configuration key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("main.name", AppName)

	v.SetDefault("model.backend", "linear")
	v.SetDefault("model.path", "models/scream_model.json")
	v.SetDefault("model.scalerpath", "")
	v.SetDefault("model.threads", 0)

	v.SetDefault("audio.uploaddir", "uploads")
	v.SetDefault("audio.maxduration", 60)
	v.SetDefault("audio.purgeonstart", true)

	v.SetDefault("escalation.window", DefaultWindow)
	v.SetDefault("escalation.mindetections", DefaultMinDetections)
	v.SetDefault("escalation.emergencynumber", DefaultEmergencyNumber)
	v.SetDefault("escalation.candidatettl", 10*time.Minute)

	v.SetDefault("location.googlemapsapikey", "")
	v.SetDefault("location.ipinfotoken", "")
	v.SetDefault("location.timeout", DefaultLocationTimeout)
	v.SetDefault("location.cachettl", 10*time.Minute)
	v.SetDefault("location.google.enabled", true)
	v.SetDefault("location.google.baseurl", DefaultGoogleBaseURL)
	v.SetDefault("location.nominatim.enabled", true)
	v.SetDefault("location.nominatim.baseurl", DefaultNominatimBaseURL)
	v.SetDefault("location.nominatim.useragent", "ScreamGuard/1.0")
	v.SetDefault("location.ipinfo.enabled", true)
	v.SetDefault("location.ipinfo.baseurl", DefaultIPInfoBaseURL)
	v.SetDefault("location.ipinfo.publicipurl", DefaultPublicIPURL)
	v.SetDefault("location.ipinfo.ratelimit", 1.0)
	v.SetDefault("location.ipinfo.burst", 5)

	v.SetDefault("notification.timeout", DefaultChannelTimeout)
	v.SetDefault("notification.sms.enabled", true)
	v.SetDefault("notification.sms.recipients", []string{})
	v.SetDefault("notification.email.enabled", true)
	v.SetDefault("notification.email.port", 465)
	v.SetDefault("notification.email.encryption", "implicittls")
	v.SetDefault("notification.email.plaintext", false)
	v.SetDefault("notification.email.recipients", []string{})
	v.SetDefault("notification.call.enabled", true)
	v.SetDefault("notification.call.simulate", true)
	v.SetDefault("notification.mqtt.enabled", false)
	v.SetDefault("notification.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("notification.mqtt.topic", DefaultMQTTTopic)
	v.SetDefault("notification.mqtt.qos", 1)

	v.SetDefault("output.sqlite.enabled", true)
	v.SetDefault("output.sqlite.path", "screamguard.db")
	v.SetDefault("output.mysql.enabled", false)
	v.SetDefault("output.mysql.port", "3306")
	v.SetDefault("output.mongodb.enabled", false)
	v.SetDefault("output.mongodb.uri", "mongodb://localhost:27017/")
	v.SetDefault("output.mongodb.database", DefaultMongoDatabase)
	v.SetDefault("output.mongodb.collection", DefaultMongoCollection)

	v.SetDefault("webserver.host", "0.0.0.0")
	v.SetDefault("webserver.port", "5000")
	v.SetDefault("webserver.bodylimit", "32M")
	v.SetDefault("webserver.ratelimit", 10.0)
	v.SetDefault("webserver.trustedproxies", []string{})
	v.SetDefault("webserver.shutdowntimeout", 10*time.Second)
	v.SetDefault("webserver.debug", false)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/screamguard.log")
	v.SetDefault("logging.file_output.level", "info")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}
