package constants

const (
	AppName      = "medcenter"
	ConfigName   = "config"
	ConfigFormat = "yaml"
	EnvPrefix    = "MEDCENTER"

	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"

	HeaderCenterID  = "X-Center-ID"
	HeaderRequestID = "X-Request-Id"

	CookieSession = "mc_session"
	CookieRefresh = "mc_refresh"
)
