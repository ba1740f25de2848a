// Command authguard-probe exercises an authguard client against a live auth
// backend, or against in-process state only, and prints what it finds. It is
// a diagnostic tool for integrators, not part of the library API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	authguard "github.com/voyatra/authguard"
	promexport "github.com/voyatra/authguard/metrics/export/prometheus"
	"github.com/voyatra/authguard/password"
)

func main() {
	var (
		baseURL    = flag.String("base-url", "", "auth backend base URL; AUTHGUARD_BASE_URL env is used when empty")
		identifier = flag.String("identifier", "", "login identifier; skips the login probe when empty")
		passwd     = flag.String("password", "", "login password")
		candidate  = flag.String("strength", "", "evaluate password strength for this candidate and exit")
		redisAddr  = flag.String("redis-addr", "", "redis address; in-process miniredis is used when empty")
		timeout    = flag.Duration("timeout", 10*time.Second, "probe timeout")
	)
	flag.Parse()

	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *candidate != "" {
		result := password.Evaluate(*candidate)
		fmt.Printf("score=%d strength=%s\n", result.Score, result.Strength)
		for _, e := range result.Errors {
			fmt.Println("error:", e)
		}
		for _, s := range result.Suggestions {
			fmt.Println("suggestion:", s)
		}
		return
	}

	url := *baseURL
	if url == "" {
		url = os.Getenv("AUTHGUARD_BASE_URL")
	}
	if url == "" {
		logger.Fatal("base url required, pass -base-url or set AUTHGUARD_BASE_URL")
	}

	addr := *redisAddr
	if addr == "" {
		mini, err := miniredis.Run()
		if err != nil {
			logger.Fatal("miniredis", zap.Error(err))
		}
		defer mini.Close()
		addr = mini.Addr()
		logger.Info("using in-process redis", zap.String("addr", addr))
	}
	redisClient := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = redisClient.Close() }()

	client, err := authguard.New().
		WithBaseURL(url).
		WithRedis(redisClient).
		WithLogger(logger).
		WithMetricsEnabled(true).
		WithAuditEnabled(true).
		WithAuditSink(authguard.NewZapAuditSink(logger)).
		Build()
	if err != nil {
		logger.Fatal("build client", zap.Error(err))
	}
	defer client.Close()

	report := client.SecurityReport()
	logger.Info("security posture",
		zap.Bool("rate_limiting", report.RateLimitingActive),
		zap.Int("max_login_attempts", report.MaxLoginAttempts),
		zap.Duration("login_window", report.LoginWindow),
		zap.Strings("mfa_methods", report.MFAMethods),
		zap.Duration("mfa_session_ttl", report.MFASessionTTL),
		zap.Bool("distributed_state", report.DistributedState),
	)

	if *identifier == "" {
		logger.Info("no identifier given, skipping login probe")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := client.Login(ctx, authguard.Credentials{
		Identifier: *identifier,
		Password:   *passwd,
	})
	if err != nil {
		logger.Fatal("login probe failed", zap.Error(err))
	}

	if result.MFARequired {
		logger.Info("login requires mfa",
			zap.String("method", result.Challenge.Method),
			zap.Time("expires_at", result.Challenge.ExpiresAt),
		)
	} else {
		logger.Info("login succeeded", zap.Bool("authenticated", client.Authenticated()))
	}

	fmt.Println(promexport.NewExporter(client).Render())
}
