/*
 * Copyright (C) 2022-2025. Gardel <gardel741@outlook.com> and contributors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/ini.v1"

	"optimade-gateway-go/router"
	"optimade-gateway-go/service"
	"optimade-gateway-go/store"
)

type MetaCfg struct {
	ServerName            string `ini:"server_name"`
	ImplementationName    string `ini:"implementation_name"`
	ImplementationVersion string `ini:"implementation_version"`
	APIVersion            string `ini:"api_version"`
	BaseURL               string `ini:"base_url"`
}

type ServerCfg struct {
	ServerAddress  string   `ini:"server_address"`
	TrustedProxies []string `ini:"trusted_proxies"`
}

type OrchestratorCfg struct {
	PerDBTimeoutMs         int `ini:"per_db_timeout_ms"`
	GatewayTimeoutMs       int `ini:"gateway_timeout_ms"`
	MaxConcurrentUpstreams int `ini:"max_concurrent_upstreams"`
}

// UpstreamCfg is the default per-database rate limit applied to every
// database a gateway resolves against. RequestsPerSecond <= 0 (the
// default) leaves upstream fetches unthrottled.
type UpstreamCfg struct {
	RequestsPerSecond float64 `ini:"requests_per_second"`
	Burst             int     `ini:"burst"`
}

func main() {
	configFilePath := "config.ini"
	cfg, err := ini.LooseLoad(configFilePath)
	if err != nil {
		log.Fatal("failed to read config file: ", err)
	}

	meta := MetaCfg{
		ServerName:            "An OPTIMADE Gateway",
		ImplementationName:    "optimade-gateway-go",
		ImplementationVersion: "v0.1",
		APIVersion:            "1.1.0",
		BaseURL:               "http://localhost:8080",
	}
	if err := cfg.Section("meta").MapTo(&meta); err != nil {
		log.Fatal("failed to read config file: ", err)
	}

	storeCfg := store.Config{Driver: "memory", DatabaseName: "optimade_gateway"}
	if err := cfg.Section("store").MapTo(&storeCfg); err != nil {
		log.Fatal("failed to read config file: ", err)
	}

	orchCfg := OrchestratorCfg{
		PerDBTimeoutMs:         240000,
		GatewayTimeoutMs:       300000,
		MaxConcurrentUpstreams: 10,
	}
	if err := cfg.Section("orchestrator").MapTo(&orchCfg); err != nil {
		log.Fatal("failed to read config file: ", err)
	}

	serverCfg := ServerCfg{
		ServerAddress: ":8080",
		TrustedProxies: []string{
			"127.0.0.0/8",
			"10.0.0.0/8",
			"192.168.0.0/16",
			"172.16.0.0/12",
		},
	}
	if err := cfg.Section("server").MapTo(&serverCfg); err != nil {
		log.Fatal("failed to read config file: ", err)
	}

	upstreamCfg := UpstreamCfg{RequestsPerSecond: 0, Burst: 5}
	if err := cfg.Section("upstream").MapTo(&upstreamCfg); err != nil {
		log.Fatal("failed to read config file: ", err)
	}

	if _, err := os.Stat(configFilePath); err != nil && os.IsNotExist(err) {
		log.Println("config file not found, writing defaults")
		_ = cfg.Section("meta").ReflectFrom(&meta)
		_ = cfg.Section("store").ReflectFrom(&storeCfg)
		_ = cfg.Section("orchestrator").ReflectFrom(&orchCfg)
		_ = cfg.Section("server").ReflectFrom(&serverCfg)
		_ = cfg.Section("upstream").ReflectFrom(&upstreamCfg)
		if err := cfg.SaveToIndent(configFilePath, " "); err != nil {
			log.Println("warning: failed to save config file: ", err)
		}
	}

	ctx := context.Background()
	backend, err := store.NewBackend(ctx, storeCfg)
	if err != nil {
		log.Fatal("failed to connect to document store: ", err)
	}

	registry, err := service.NewGatewayRegistry(backend, 256)
	if err != nil {
		log.Fatal("failed to build gateway registry: ", err)
	}
	queries := service.NewQueryStore(backend)
	client := service.NewUpstreamClient()
	orchestrator := service.NewOrchestrator(registry, queries, client, service.OrchestratorConfig{
		MaxConcurrentUpstreams: orchCfg.MaxConcurrentUpstreams,
		PerDBTimeout:           time.Duration(orchCfg.PerDBTimeoutMs) * time.Millisecond,
		GatewayTimeout:         time.Duration(orchCfg.GatewayTimeoutMs) * time.Millisecond,
		VersionPath:            "v1",
	})

	serverMeta := router.ServerMeta{
		ID:                    meta.ServerName,
		ImplementationName:    meta.ImplementationName,
		ImplementationVersion: meta.ImplementationVersion,
		APIVersion:            meta.APIVersion,
		BaseURL:               meta.BaseURL,
	}

	r := gin.Default()
	if err := r.SetTrustedProxies(serverCfg.TrustedProxies); err != nil {
		log.Fatal(err)
	}
	router.InitRouters(r, serverMeta, registry, queries, orchestrator, router.UpstreamThrottleConfig{
		RequestsPerSecond: upstreamCfg.RequestsPerSecond,
		Burst:             upstreamCfg.Burst,
	})

	srv := &http.Server{
		Addr:    serverCfg.ServerAddress,
		Handler: r,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("listen: %s\n", err)
		}
	}()
	log.Printf("started, address: %s\n", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("forced shutdown: ", err)
	}
	if err := backend.Close(shutdownCtx); err != nil {
		log.Println("warning: failed to close document store: ", err)
	}
	log.Println("exited")
}
