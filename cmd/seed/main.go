package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/medblog/internal/domain/model"
	"github.com/okian/medblog/internal/seed"
	"github.com/okian/medblog/pkg/auth"
	"github.com/okian/medblog/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumArticles = 50
	defaultNumViewers  = 20
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultDrainWait   = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
	seedTokenTTL       = time.Hour
	jwtSecretEnv       = "MEDBLOG_JWT_SECRET"
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		token       = flag.String("token", "", "Bearer token with the admin role")
		jwtSecret   = flag.String("jwt-secret", os.Getenv(jwtSecretEnv), "Signing secret used to mint an admin token when -token is empty")
		numArticles = flag.Int("articles", defaultNumArticles, "Number of articles to create")
		numViewers  = flag.Int("viewers", defaultNumViewers, "Distinct viewers per article")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		drain       = flag.Duration("drain", defaultDrainWait, "How long to wait for queued views to be applied")
		seedVal     = flag.Int64("seed", time.Now().UnixNano(), "Random seed for generated articles")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Seeds a running medblog service with articles and views, then verifies the ranked feed.")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	if *token == "" && *jwtSecret != "" {
		mgr, err := auth.NewManager(*jwtSecret)
		if err == nil {
			*token, err = mgr.Issue("seed-admin", "Seeder", model.RoleAdmin, seedTokenTTL)
		}
		if err != nil {
			os.Stderr.WriteString("failed to mint token: " + err.Error() + "\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &seed.Config{
		BaseURL:     *baseURL,
		Token:       *token,
		NumArticles: *numArticles,
		NumViewers:  *numViewers,
		Workers:     *workers,
		Timeout:     *timeout,
		DrainWait:   *drain,
		Seed:        *seedVal,
		Verbose:     *verbose,
	}

	if _, err := seed.Run(ctx, cfg); err != nil {
		cancel()
		os.Stderr.WriteString("seed run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
