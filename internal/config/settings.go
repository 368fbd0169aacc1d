package config

import "github.com/spf13/viper"

// SettingType represents the type of a setting
type SettingType string

const (
	// String type for string settings
	String SettingType = "string"
	// Bool type for boolean settings
	Bool SettingType = "bool"
)

// Setting defines a configuration setting
type Setting struct {
	// Name is the name of the setting
	Name string
	// Short is a short description of the setting
	Short string
	// Type is the type of the setting
	Type SettingType
	// Default is the default value of the setting
	Default interface{}
	// Env is the environment variable name for the setting
	Env string
	// Required indicates whether the setting is required
	Required bool
}

// SettingList is a list of settings
type SettingList []Setting

// PopulateViperDefaults sets default values for all settings in Viper
func (sl SettingList) PopulateViperDefaults(v *viper.Viper) {
	for _, s := range sl {
		v.SetDefault(s.Name, s.Default)
	}
}

// Settings defines all application settings
var Settings = SettingList{
	// Server settings
	{
		Name:    "SERVER_ADDR",
		Short:   "Address on which the server listens",
		Type:    String,
		Default: ":8080",
		Env:     "SERVER_ADDR",
	},
	{
		Name:    "METRICS_ADDR",
		Short:   "Address on which the metrics server listens",
		Type:    String,
		Default: ":9090",
		Env:     "METRICS_ADDR",
	},
	{
		Name:    "SHUTDOWN_TIMEOUT",
		Short:   "Maximum time to wait for graceful shutdown",
		Type:    String,
		Default: "30s",
		Env:     "SHUTDOWN_TIMEOUT",
	},

	// TLS settings
	{
		Name:    "TLS_ENABLED",
		Short:   "Enable TLS for the server",
		Type:    Bool,
		Default: false,
		Env:     "TLS_ENABLED",
	},
	{
		Name:    "TLS_CERT_PATH",
		Short:   "Path to TLS certificate file",
		Type:    String,
		Default: "",
		Env:     "TLS_CERT_PATH",
	},
	{
		Name:    "TLS_KEY_PATH",
		Short:   "Path to TLS key file",
		Type:    String,
		Default: "",
		Env:     "TLS_KEY_PATH",
	},

	// Upstream settings
	{
		Name:     "UPSTREAM_URL",
		Short:    "URL of the upstream application",
		Type:     String,
		Default:  "",
		Env:      "UPSTREAM_URL",
		Required: true,
	},
	{
		Name:    "UPSTREAM_TIMEOUT",
		Short:   "Timeout for upstream requests",
		Type:    String,
		Default: "30s",
		Env:     "UPSTREAM_TIMEOUT",
	},

	// Gate settings
	{
		Name:    "LOGIN_PATH",
		Short:   "Path of the login form",
		Type:    String,
		Default: "/login",
		Env:     "LOGIN_PATH",
	},
	{
		Name:    "LOGOUT_PATH",
		Short:   "Path logout submissions are posted to",
		Type:    String,
		Default: "/logout",
		Env:     "LOGOUT_PATH",
	},
	{
		Name:    "DEFAULT_TARGET",
		Short:   "Where successful logins land when no original target was saved",
		Type:    String,
		Default: "/",
		Env:     "DEFAULT_TARGET",
	},
	{
		Name:    "STATIC_PREFIX",
		Short:   "Static-resource path prefix",
		Type:    String,
		Default: "/resources/",
		Env:     "STATIC_PREFIX",
	},

	// Session settings
	{
		Name:    "SESSION_COOKIE_NAME",
		Short:   "Name of the session cookie",
		Type:    String,
		Default: "authgate_session",
		Env:     "SESSION_COOKIE_NAME",
	},
	{
		Name:    "SESSION_TTL",
		Short:   "Session lifetime",
		Type:    String,
		Default: "30m",
		Env:     "SESSION_TTL",
	},
	{
		Name:    "SESSION_BACKEND",
		Short:   "Session store backend (memory, redis)",
		Type:    String,
		Default: "memory",
		Env:     "SESSION_BACKEND",
	},
	{
		Name:    "SESSION_REDIS_ADDR",
		Short:   "Redis address for the redis session backend",
		Type:    String,
		Default: "",
		Env:     "SESSION_REDIS_ADDR",
	},
	{
		Name:    "SESSION_REDIS_PASSWORD",
		Short:   "Redis password for the redis session backend",
		Type:    String,
		Default: "",
		Env:     "SESSION_REDIS_PASSWORD",
	},

	// Credential settings
	{
		Name:     "USERS_FILE",
		Short:    "Path to the YAML users file",
		Type:     String,
		Default:  "",
		Env:      "USERS_FILE",
		Required: true,
	},

	// Authentication: Bearer
	{
		Name:    "AUTH_BEARER_ENABLED",
		Short:   "Enable Bearer token authentication",
		Type:    Bool,
		Default: false,
		Env:     "AUTH_BEARER_ENABLED",
	},
	{
		Name:    "AUTH_BEARER_SECRET",
		Short:   "HMAC signing secret for Bearer token validation",
		Type:    String,
		Default: "",
		Env:     "AUTH_BEARER_SECRET",
	},
	{
		Name:    "AUTH_BEARER_ISSUER",
		Short:   "Expected Bearer token issuer",
		Type:    String,
		Default: "",
		Env:     "AUTH_BEARER_ISSUER",
	},
	{
		Name:    "AUTH_BEARER_AUDIENCE",
		Short:   "Expected Bearer token audience",
		Type:    String,
		Default: "",
		Env:     "AUTH_BEARER_AUDIENCE",
	},

	// Observability
	{
		Name:    "LOG_LEVEL",
		Short:   "Logging level",
		Type:    String,
		Default: "info",
		Env:     "LOG_LEVEL",
	},
}
