package config

const (
	EnvPrefix = "PLATERUSH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PLATERUSH_DB_DSN"
	EnvDBHost = "PLATERUSH_DB_HOST"
	EnvDBUser = "PLATERUSH_DB_USER"
	EnvDBName = "PLATERUSH_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
