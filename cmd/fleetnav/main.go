package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetnav/config"
	"fleetnav/engine"
	"fleetnav/eventlog"
	"fleetnav/fleetstate"
	"fleetnav/messaging"
	"fleetnav/navgraph"
	"fleetnav/store"
	"fleetnav/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "fleetnav.yaml", "path to config file")
	graphPath := flag.String("graph", "", "navigation graph file (overrides graph_file)")
	logPath := flag.String("log", "", "event log file (overrides log_file)")
	flag.Parse()

	if *showVersion {
		fmt.Println("fleetnav", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *graphPath != "" {
		cfg.GraphFile = *graphPath
	}
	if *logPath != "" {
		cfg.LogFile = *logPath
	}

	// Navigation graph
	graph, err := navgraph.Load(cfg.GraphFile)
	if err != nil {
		log.Fatalf("load graph: %v", err)
	}
	log.Printf("fleetnav: graph %s loaded (level %s, %d vertices, %d lanes, %d chargers)",
		cfg.GraphFile, graph.Level(), graph.NumVertices(), len(graph.Lanes()), len(graph.Chargers()))

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("fleetnav: database open (%s)", cfg.Database.Driver)

	// Event log sinks
	sinks := []eventlog.Sink{db}
	if cfg.LogFile != "" {
		fileSink, err := eventlog.OpenFile(cfg.LogFile)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer fileSink.Close()
		sinks = append(sinks, fileSink)
		log.Printf("fleetnav: logging events to %s", cfg.LogFile)
	}

	// Messaging client
	var msgClient *messaging.Client
	if cfg.Messaging.Backend != "" {
		msgClient = messaging.NewClient(&cfg.Messaging)
		if err := msgClient.Connect(); err != nil {
			log.Printf("fleetnav: messaging connect failed (%v)", err)
		} else {
			log.Printf("fleetnav: messaging connected (%s)", cfg.Messaging.Backend)
		}
		defer msgClient.Close()
		sinks = append(sinks, messaging.NewEventPublisher(db, cfg.Messaging.EventTopic, cfg.Messaging.StationID))
	}

	eventLog := eventlog.New(eventlog.Config{
		QueueSize:     cfg.EventLog.QueueSize,
		FlushSize:     cfg.EventLog.FlushSize,
		FlushInterval: cfg.EventLog.FlushInterval,
	}, sinks...)
	defer eventLog.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig: cfg,
		Graph:     graph,
		EventLog:  eventLog,
	})
	eng.Start()
	defer eng.Stop()

	// Redis snapshot cache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("fleetnav: redis not available (%v), running without cache", err)
		} else {
			log.Printf("fleetnav: redis connected (%s)", cfg.Redis.Address)
			redisStore := fleetstate.NewRedisStore(redisClient)
			if err := redisStore.FlushAll(ctx); err != nil {
				log.Printf("fleetnav: redis flush: %v", err)
			}
			publisher := fleetstate.NewPublisher(eng, redisStore, cfg.Redis.SnapshotInterval)
			publisher.Start()
			defer publisher.Stop()
		}
		cancel()
	}

	// Inbound commands and outbound outbox
	if msgClient != nil {
		consumer := messaging.NewCommandConsumer(msgClient, db, eng,
			cfg.Messaging.CommandTopic, cfg.Messaging.EventTopic, cfg.Messaging.StationID)
		if err := consumer.Start(); err != nil {
			log.Printf("fleetnav: command consumer subscribe failed: %v", err)
		} else {
			log.Printf("fleetnav: command consumer listening on %s", cfg.Messaging.CommandTopic)
		}

		drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
		drainer.Start()
		defer drainer.Stop()
	}

	// Web server
	var checks []www.HealthCheck
	if msgClient != nil {
		checks = append(checks, www.HealthCheck{Name: "messaging", OK: msgClient.IsConnected})
	}
	handler, stopWeb := www.NewRouter(eng, db, checks...)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("fleetnav: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("fleetnav: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("fleetnav: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("fleetnav: stopped")
}
