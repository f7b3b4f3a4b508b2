package app

import (
	"strconv"

	"shard-federator/internal/audit"
	"shard-federator/internal/common/logging"
	"shard-federator/internal/redis"
)

// initializeAudit picks the auditor: Redis when an address is configured,
// otherwise the log auditor when AUDIT_ENABLED is set. A Redis failure
// falls back to the log auditor.
func (app *App) initializeAudit() error {
	if app.Config.AuditRedisAddress == "" {
		if app.Config.AuditEnabled {
			app.auditor = audit.NewLogAuditor(app.Logger)
			app.Logger.Info("Audit: Logging")
		}
		return nil
	}

	redisDB, _ := strconv.Atoi(app.Config.AuditRedisDB)
	client, err := redis.NewClient(&redis.Config{
		Address:  app.Config.AuditRedisAddress,
		Password: app.Config.AuditRedisPassword,
		DB:       redisDB,
	})
	if err != nil {
		app.auditor = audit.NewLogAuditor(app.Logger)
		return err
	}

	auditor, err := audit.NewRedisAuditor(client, app.Config.AuditRedisKey, audit.DefaultMaxEntries)
	if err != nil {
		client.Close()
		return err
	}

	app.RedisClient = client
	app.auditor = auditor
	app.Logger.Info("Audit: Redis", logging.String("address", app.Config.AuditRedisAddress))
	return nil
}
