// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZSC714725/convertqueue/internal/api"
	"github.com/ZSC714725/convertqueue/internal/config"
	"github.com/ZSC714725/convertqueue/internal/ffmpeg"
	"github.com/ZSC714725/convertqueue/internal/job"
	"github.com/ZSC714725/convertqueue/internal/logger"
	"github.com/ZSC714725/convertqueue/internal/plan"
	"github.com/ZSC714725/convertqueue/internal/scheduler"
	"github.com/ZSC714725/convertqueue/internal/watch"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	watchDir := flag.String("watch", "", "Inbox directory to auto-enqueue (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}

	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ffmpegBin != "" {
		cfg.FFmpeg.Path = *ffmpegBin
	}
	if *watchDir != "" {
		cfg.Watch.Dir = *watchDir
	}

	logg := logger.New("convertqueue")

	ff := ffmpeg.New(ffmpeg.Config{
		Binary:      cfg.FFmpeg.Path,
		ProbeBinary: cfg.FFmpeg.ProbePath,
		Logger:      logg,
	})

	store := job.NewStore(cfg.Jobs.LogLines)
	planner := plan.NewPlanner(plan.StrategyByName(cfg.FFmpeg.Strategy), logg)
	hub := api.NewHub(logg)

	sched := scheduler.New(scheduler.Config{
		Store:          store,
		FFmpeg:         ff,
		Planner:        planner,
		Emitter:        hub,
		Logger:         logg,
		MaxConcurrency: cfg.Jobs.MaxConcurrency,
		Autostart:      cfg.Jobs.Autostart,
		OutputDir:      cfg.Jobs.OutputDir,
		KillGrace:      time.Duration(cfg.Jobs.KillGraceSeconds) * time.Second,
		StaleTimeout:   time.Duration(cfg.Jobs.StaleTimeoutSeconds) * time.Second,
	})

	var watcher *watch.Watcher
	if cfg.Watch.Dir != "" {
		tier, ok := plan.ParseTier(cfg.Watch.Tier)
		if !ok {
			log.Fatalf("Unknown watch tier: %s", cfg.Watch.Tier)
		}

		var err error
		watcher, err = watch.New(watch.Config{
			Dir:    cfg.Watch.Dir,
			Preset: cfg.Watch.Preset,
			Tier:   tier,
			Logger: logg,
		}, sched)
		if err != nil {
			log.Fatalf("Watcher init: %v", err)
		}
		if err := watcher.Start(); err != nil {
			log.Fatalf("Watcher start: %v", err)
		}
	}

	handler := api.NewHandler(store, sched, ff, planner, hub)

	r := gin.Default()
	r.Use(gin.Recovery(), cors.Default())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/jobs", handler.EnqueueJob)
		v1.POST("/jobs/batch", handler.EnqueueBatch)
		v1.GET("/jobs", handler.ListJobs)
		v1.DELETE("/jobs/completed", handler.ClearCompleted)
		v1.GET("/jobs/:id", handler.GetJob)
		v1.GET("/jobs/:id/log", handler.GetJobLog)
		v1.POST("/jobs/:id/cancel", handler.CancelJob)
		v1.POST("/jobs/:id/requeue", handler.RequeueJob)

		v1.GET("/scheduler", handler.SchedulerState)
		v1.POST("/scheduler/start-next", handler.StartNext)
		v1.PUT("/scheduler/concurrency", handler.SetConcurrency)

		v1.GET("/presets", handler.Presets)
		v1.GET("/capabilities", handler.Capabilities)
		v1.POST("/capabilities/reload", handler.ReloadCapabilities)

		v1.GET("/events", handler.Events)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: cfg.Server.Bind, Handler: r}

	go func() {
		logg.Info("ConvertQueue listening on %s", cfg.Server.Bind)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server: %v", err)
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")

	if watcher != nil {
		watcher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sched.Shutdown(shutdownCtx); err != nil {
		logg.Warn("scheduler drain: %v", err)
	}
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Warn("server shutdown: %v", err)
	}
}
