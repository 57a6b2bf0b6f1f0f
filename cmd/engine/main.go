package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"agromonitor/internal/automation"
	"agromonitor/internal/config"
	"agromonitor/internal/db"
	"agromonitor/internal/engine"
	"agromonitor/internal/influx"
	"agromonitor/internal/logger"
	"agromonitor/internal/mqtt"
	"agromonitor/internal/notify"
	"agromonitor/internal/redis"
	"agromonitor/internal/scheduler"
	"agromonitor/internal/services"
	"agromonitor/internal/source"
	"agromonitor/internal/taskqueue"
	"agromonitor/internal/web"

	"github.com/hibiken/asynq"
)

const (
	publishTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
	reportJobID     = "daily-report"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Log.Level)
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer dbConn.Close()
	if err := dbConn.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient := redis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, cfg.Redis.CacheTTL)

	var history services.HistoryWriter
	if cfg.Influx.URL != "" {
		writer, err := influx.NewWriter(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create influx writer")
		}
		defer writer.Close()
		history = writer
	} else {
		log.Info().Msg("influx.url not set, history mirroring disabled")
	}

	mqttClient, err := mqtt.NewMQTTClient(ctx, mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MQTT")
	}
	defer mqttClient.Disconnect(250)

	readingSvc := services.NewReadingService(dbConn, cache, history)
	if err := mqtt.SubscribeReadings(mqttClient, cfg.MQTT.ReadingsTopic, readingSvc.HandleMQTT); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to readings")
	}

	emitter := notify.Multi{
		notify.LogEmitter{Logger: logger.WithComponent("notify")},
		notify.NewMQTTEmitter(mqttClient, cfg.Notifications.MQTTTopic, publishTimeout),
	}
	if cfg.Notifications.RedisChannel != "" {
		emitter = append(emitter, notify.NewRedisEmitter(redisClient, cfg.Notifications.RedisChannel))
	}

	mode, err := notify.ParsePanelMode(cfg.Notifications.PanelMode)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid panel mode")
	}
	notifications := notify.NewLog(cfg.Notifications.MaxEntries, mode)

	rules, err := automation.BuildRules(cfg.Rules.SoilMoistureMin, cfg.Rules.AirHumidityMin, cfg.Rules.Custom)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rules")
	}

	eng := engine.NewEngine(newSource(cfg, cache), emitter, notifications, engine.Config{
		Interval:     cfg.Monitor.PollInterval,
		FetchTimeout: cfg.Monitor.FetchTimeout,
		Rules:        rules,
	})
	if cfg.Monitor.Enabled {
		if err := eng.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start engine")
		}
	} else {
		log.Warn().Msg("monitor disabled, polls run only on request")
	}

	queue := taskqueue.NewQueue(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, 2)
	queue.Handle(taskqueue.TypeDailyReport, taskqueue.NewReportHandler(services.NewReportService(dbConn), eng))
	if err := queue.StartWorkers(); err != nil {
		log.Fatal().Err(err).Msg("failed to start workers")
	}

	sched := scheduler.NewScheduler()
	if cfg.Report.Enabled {
		err := sched.AddOrUpdateSchedule(reportJobID, cfg.Report.Cron, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			payload := taskqueue.ReportPayload{DeviceID: cfg.Report.DeviceID, Window: cfg.Report.Window}
			if err := queue.EnqueueReport(jobCtx, payload); err != nil {
				log.Error().Err(err).Msg("failed to enqueue daily report")
			}
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to schedule daily report")
		}
	}
	sched.Start()

	webServer := web.NewWebServer(web.Dependencies{
		Readings:      readingSvc,
		Devices:       services.NewDeviceService(dbConn),
		Notifications: notifications,
		Monitor:       eng,
		DefaultDevice: cfg.Monitor.DeviceID,
	}, cfg.JWT.Secret)
	go func() {
		if err := webServer.Start(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	if cfg.MDNS.Enabled {
		conn, err := startMDNSServer(cfg.MDNS.LocalName)
		if err != nil {
			log.Warn().Err(err).Msg("mDNS disabled")
		} else {
			defer conn.Close()
		}
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// the server goes first so no manual poll outlives eng.Stop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	eng.Stop()
	sched.Stop()
	queue.StopWorkers()
	log.Info().Msg("shutdown complete")
}

// newSource polls the sensor endpoint when one is configured, otherwise the
// latest reading ingested for the monitored device.
func newSource(cfg *config.Config, cache *redis.Cache) engine.Source {
	if cfg.Monitor.SensorURL != "" {
		breaker := source.NewBreaker("sensor", cfg.Monitor.BreakerFailures, cfg.Monitor.BreakerTimeout)
		return source.NewHTTPSource(cfg.Monitor.SensorURL, &http.Client{}, breaker)
	}
	return source.NewRedisSource(cache, cfg.Monitor.DeviceID)
}
