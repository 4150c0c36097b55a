package config

const (
	defaultConfigPath                = "~/.config/wellbeing/config.toml"
	defaultStateDir                  = "~/.local/share/wellbeing"
	defaultLogDir                    = "~/.local/share/wellbeing/logs"
	defaultRuntimeDir                = "~/.local/share/wellbeing/run"
	defaultFrameworkTarget           = "org.eu.droid_ng.wellbeing.framework.FRAMEWORK_SERVICE"
	defaultFrameworkSocketName       = "framework.sock"
	defaultPeerUID                   = -1
	defaultPingTimeoutMillis         = 500
	defaultCallTimeoutMillis         = 5000
	defaultLaunchTimeoutSeconds      = 10
	defaultReconnectInitialMillis    = 250
	defaultReconnectMaxMillis        = 5000
	defaultServiceVersion            = 1
	defaultServiceDatabaseName       = "framework.db"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	envFrameworkSocket               = "WELLBEING_FRAMEWORK_SOCKET"
	envFrameworkExecutable           = "WELLBEING_FRAMEWORK_EXECUTABLE"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			RuntimeDir: defaultRuntimeDir,
		},
		Framework: Framework{
			Target:               defaultFrameworkTarget,
			AutoCreate:           true,
			IncludeCapabilities:  true,
			PeerUID:              defaultPeerUID,
			PingTimeoutMillis:    defaultPingTimeoutMillis,
			CallTimeoutMillis:    defaultCallTimeoutMillis,
			LaunchTimeoutSeconds: defaultLaunchTimeoutSeconds,
			ReconnectInitialMS:   defaultReconnectInitialMillis,
			ReconnectMaxMS:       defaultReconnectMaxMillis,
		},
		Service: Service{
			Enabled: true,
			Version: defaultServiceVersion,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
