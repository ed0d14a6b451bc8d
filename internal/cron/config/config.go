package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Watcher status snapshot, every five minutes
	CronScheduleWatcherSnapshot string `env:"CRON_SCHEDULE_WATCHER_SNAPSHOT" envDefault:"0 */5 * * * *"`
}
