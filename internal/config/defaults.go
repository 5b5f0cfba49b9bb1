package config

const (
	defaultDataDir            = "~/.local/share/webar"
	defaultLogDir             = "~/.local/share/webar/logs"
	defaultAPIBind            = "127.0.0.1:8000"
	defaultBaseURL            = "http://localhost:3000"
	defaultMaxUploadBytes     = 10 * 1024 * 1024
	defaultStorageCodec       = "none"
	defaultConverterCommand   = "blender"
	defaultConverterTimeout   = 60
	defaultWorkerCount        = 2
	defaultBackendKind        = BackendLocal
	defaultEcho3DAPIURL       = "https://api.echo3d.com"
	defaultEcho3DTimeout      = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	defaultShutdownTimeoutSec = 10
	defaultRateLimitRequests  = 100
	defaultRateLimitWindowSec = 15 * 60
)

var defaultAllowedExtensions = []string{".glb"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Server: Server{
			BaseURL:                defaultBaseURL,
			MaxUploadBytes:         defaultMaxUploadBytes,
			AllowedExtensions:      append([]string(nil), defaultAllowedExtensions...),
			ShutdownTimeoutSeconds: defaultShutdownTimeoutSec,
			RateLimitRequests:      defaultRateLimitRequests,
			RateLimitWindowSeconds: defaultRateLimitWindowSec,
		},
		Storage: Storage{
			Codec: defaultStorageCodec,
		},
		Converter: Converter{
			Enabled:        true,
			Command:        defaultConverterCommand,
			TimeoutSeconds: defaultConverterTimeout,
		},
		Workers: Workers{
			Count: defaultWorkerCount,
		},
		Backend: Backend{
			Kind:                 defaultBackendKind,
			Echo3DAPIURL:         defaultEcho3DAPIURL,
			Echo3DTimeoutSeconds: defaultEcho3DTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
