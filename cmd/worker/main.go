package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/config"
	"rollcall/internal/journal"
	"rollcall/internal/logging"
	"rollcall/internal/queue"
	"rollcall/internal/storage"
)

// Worker drains the journal queue and writes each activity entry to the
// structured log, giving operators a flat audit stream without touching the
// API process. Runs only against the redis queue: the in-memory backend
// never leaves the API process.
func main() {
	cfg := config.Load()
	log := logging.Setup(cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != "redis" {
		log.Error("worker requires QUEUE_BACKEND=redis; the memory queue is process-local")
		os.Exit(1)
	}

	redisClient := storage.NewRedis(cfg.RedisAddr)
	q := queue.NewRedisQueue(redisClient.Client, "rollcall:journal")

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Error("queue consume init failed", "error", err)
		os.Exit(1)
	}

	log.Info("journal worker started")
	for msg := range messages {
		var e journal.Entry
		if err := json.Unmarshal(msg.Body, &e); err != nil {
			log.Warn("malformed journal entry dropped", "kind", msg.Kind, "error", err)
			continue
		}
		log.Info("activity",
			"kind", e.Kind,
			"actor", e.ActorID,
			"subject", e.Subject,
			"detail", e.Detail,
			"at", e.At,
		)
	}

	log.Info("journal worker stopped")
}
