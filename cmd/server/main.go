// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MediaMorph - 媒体文件转换队列工具

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/mediamorph/internal/api"
	"github.com/ZSC714725/mediamorph/internal/config"
	"github.com/ZSC714725/mediamorph/internal/events"
	"github.com/ZSC714725/mediamorph/internal/ffmpeg"
	"github.com/ZSC714725/mediamorph/internal/logger"
	"github.com/ZSC714725/mediamorph/internal/probe"
	"github.com/ZSC714725/mediamorph/internal/profile"
	"github.com/ZSC714725/mediamorph/internal/queue"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	ffprobeBin := flag.String("ffprobe", "", "FFprobe binary path (overrides config)")
	maxJobs := flag.Int("max-jobs", 0, "Max concurrent jobs (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}

	bindAddr := cfg.Server.Bind
	if *bind != "" {
		bindAddr = *bind
	}
	ffmpegPath := cfg.FFmpeg.Path
	if *ffmpegBin != "" {
		ffmpegPath = *ffmpegBin
	}
	ffprobePath := cfg.FFmpeg.ProbePath
	if *ffprobeBin != "" {
		ffprobePath = *ffprobeBin
	}
	if *maxJobs > 0 {
		cfg.Queue.MaxConcurrentJobs = *maxJobs
	}

	logger := logger.New("mediamorph ")

	enc, err := ffmpeg.New(ffmpeg.Config{Binary: ffmpegPath})
	if err != nil {
		log.Fatalf("FFmpeg init: %v", err)
	}

	prober, err := probe.New(probe.Config{
		Binary:         ffprobePath,
		SilenceTimeout: cfg.Queue.OutputSilenceTimeout(),
		GracePeriod:    cfg.Queue.TerminationGracePeriod(),
		Logger:         logger,
	})
	if err != nil {
		log.Fatalf("FFprobe init: %v", err)
	}

	catalog := profile.NewCatalog()
	bus := events.NewBus(logger)

	q := queue.New(enc, prober, bus, queue.Config{
		MaxConcurrentJobs:      cfg.Queue.MaxConcurrentJobs,
		OutputSilenceTimeout:   cfg.Queue.OutputSilenceTimeout(),
		TerminationGracePeriod: cfg.Queue.TerminationGracePeriod(),
		LogLines:               cfg.FFmpeg.LogLines,
	}, logger)

	handler := api.NewHandler(q, catalog, enc, bus, logger)

	r := gin.Default()
	r.Use(cors.Default())

	v1 := r.Group("/api/v1")
	{
		v1.POST("/jobs", handler.EnqueueJob)
		v1.GET("/jobs", handler.ListJobs)
		v1.GET("/jobs/:id", handler.GetJob)
		v1.DELETE("/jobs/:id", handler.CancelJob)

		v1.GET("/queue", handler.QueueState)
		v1.PUT("/queue/pause", handler.PauseQueue)
		v1.PUT("/queue/resume", handler.ResumeQueue)

		v1.GET("/profiles", handler.ListProfiles)
		v1.POST("/profiles", handler.AddProfile)

		v1.GET("/capabilities", handler.Capabilities)
		v1.POST("/capabilities/reload", handler.ReloadCapabilities)

		v1.GET("/events", handler.Events)
	}

	srv := &http.Server{Addr: bindAddr, Handler: r}

	go func() {
		log.Printf("MediaMorph listening on %s", bindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down, canceling jobs")
	q.Shutdown()
	bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
