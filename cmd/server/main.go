package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"tttengine/internal/config"
	"tttengine/internal/logging"
	"tttengine/internal/server"
	"tttengine/internal/store"
)

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Create stores
	sessionStore := store.NewSessionStore(cfg.Shards)
	outcomeStore := store.NewOutcomeStore(cfg.Shards)

	engine := server.NewTicTacToeServer(sessionStore, outcomeStore, server.Options{
		BoardSize:  cfg.DefaultSize,
		Difficulty: cfg.Difficulty(),
		ThinkDelay: cfg.ThinkDelay,
		Logger:     log,
	})

	// Create gRPC server
	grpcServer := grpc.NewServer()
	server.RegisterEngineServer(grpcServer, engine)

	// Register reflection service for tools like grpcurl
	reflection.Register(grpcServer)

	grpcAddr := fmt.Sprintf(":%d", cfg.GRPCPort)
	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", grpcAddr).Msg("failed to listen")
	}

	go func() {
		log.Info().Str("addr", grpcAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatal().Err(err).Msg("failed to serve gRPC")
		}
	}()

	gwMux, err := server.NewGateway(engine)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register gateway")
	}

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           server.NewRouter(engine, gwMux, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpAddr).Msg("HTTP/REST server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to serve HTTP")
		}
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down servers")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown")
	}
	engine.Close()
	grpcServer.GracefulStop()
	sessionStore.CloseAll()
	log.Info().Int("sessions", sessionStore.Count()).Msg("servers stopped")
}
