package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aipm/attachment"
	"aipm/config"
	"aipm/generator"
	"aipm/logger"
	"aipm/server"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: search ./config and .)")
	addr := flag.String("addr", "", "http listen address (overrides server.addr and PORT)")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	level := cfg.Logging.Level
	if *verbose {
		level = "debug"
	}
	log, err := logger.NewStructured(level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server exited", nil)
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	llm, err := buildLLM(cfg, log)
	if err != nil {
		return err
	}
	vocab, err := generator.LoadVocabulary(cfg.Assets.TagsFile)
	if err != nil {
		return err
	}
	resolver := attachment.NewResolver(attachment.Options{
		BaseDir:      cfg.Attachments.BaseDir,
		InlineRemote: cfg.Attachments.InlineRemote,
		FetchTimeout: cfg.Attachments.FetchTimeout,
		MaxBytes:     cfg.Attachments.MaxBytes,
		Concurrency:  cfg.Attachments.Concurrency,
		Logger:       log.With(logger.Fields{"component": "attachment"}),
	})
	agent, err := generator.NewAgent(generator.AgentDeps{
		LLM:         llm,
		Vocabulary:  vocab,
		Attachments: resolver,
		Archiver:    generator.NewArchiver(cfg.Image.ArchiveDir),
		Logger:      log.With(logger.Fields{"component": "generator"}),
	})
	if err != nil {
		return err
	}
	srv, err := server.New(agent, server.Options{
		Logger:         log.With(logger.Fields{"component": "server"}),
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting web server", logger.Fields{
			"addr":     cfg.Server.Addr,
			"provider": cfg.LLM.Provider,
			"docs":     "/api-docs",
			"tags":     vocab.Len(),
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case sig := <-sigCh:
		log.Info("shutdown signal received", logger.Fields{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout+5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func buildLLM(cfg *config.Config, log logger.Logger) (generator.LLMClient, error) {
	var base generator.LLMClient
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		o, err := generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider:    cfg.LLM.Provider,
			Model:       cfg.LLM.ChatModel,
			ImageModel:  cfg.LLM.ImageModel,
			ImageSize:   cfg.LLM.ImageSize,
			ImageFormat: cfg.LLM.ImageFormat,
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		base = o
	case config.ProviderMock:
		log.Warn("using mock llm provider; no model is called", nil)
		base = generator.MockLLM{ImageFormat: cfg.LLM.ImageFormat}
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}

	retrying, err := generator.NewRetryingLLM(base, generator.RetryPolicy{
		CallTimeout:    cfg.LLM.CallTimeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		InitialBackoff: cfg.LLM.InitialBackoff,
		MaxBackoff:     cfg.LLM.MaxBackoff,
		RatePerSecond:  cfg.LLM.RatePerSecond,
		Burst:          cfg.LLM.Burst,
	}, log.With(logger.Fields{"component": "llm"}))
	if err != nil {
		return nil, err
	}
	return retrying, nil
}
