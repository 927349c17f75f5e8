package internal

const (
	DotEnvPath              = "./.env"
	MigrationsDir           = "migrations"
	ArtifactsDir            = "artifacts"
	DBTimestampLayout       = "2006-01-02 15:04:05"
	WebhookTriggerKeyHeader = "X-Conveyor-Webhook-Key"
)
