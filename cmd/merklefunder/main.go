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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ligun0805/merkle-funder/internal/app"
	"github.com/ligun0805/merkle-funder/internal/config"
	"github.com/ligun0805/merkle-funder/internal/funder"
	"github.com/ligun0805/merkle-funder/internal/registry"
)

const usage = `Usage: merklefunder [flags] [run|deploy|balances|tree]

  run       simulate and fund recipients (default)
  deploy    deploy missing depositories
  balances  print depository balances
  tree      print Merkle trees and depository addresses (offline)

Flags:
`

func main() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	settings, err := config.Load()
	if err != nil {
		die("%v", err)
	}

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	configPath := flag.String("config", settings.Files.ConfigPath, "chain configuration file (JSON or YAML)")
	referencesPath := flag.String("references", settings.Files.ReferencesPath, "references.json or deployments directory")
	artifactPath := flag.String("artifact", settings.Files.ArtifactPath, "MerkleFunderDepository artifact")
	chainsFlag := flag.String("chains", "", "comma separated chain ids to process (default: CHAIN_IDS or all)")
	promptKey := flag.Bool("prompt-key", false, "ask for the funder key when the config leaves it empty")
	once := flag.Bool("once", false, "run a single round and exit")
	flag.Parse()

	cmd := "run"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}
	switch cmd {
	case "run", "deploy", "balances", "tree":
	default:
		flag.Usage()
		os.Exit(2)
	}

	if *chainsFlag != "" {
		ids, err := config.ParseChainIDs(*chainsFlag)
		if err != nil {
			die("%v", err)
		}
		settings.App.ChainIDs = ids
	}

	lg, err := app.Logger(settings.App.LogLevel)
	if err != nil {
		die("%v", err)
	}
	defer lg.Sync() //nolint:errcheck

	file, err := config.LoadFile(*configPath)
	if err != nil {
		die("%v", err)
	}
	validated, verr := file.Validate()
	for _, e := range multierr.Errors(verr) {
		lg.Warn("invalid configuration", zap.Error(e))
	}
	if len(validated) == 0 {
		die("no usable chain in %s", *configPath)
	}

	reg, err := registry.Load(*referencesPath)
	if err != nil {
		die("%v", err)
	}
	lg.Debug("deployment registry loaded", zap.Uint64s("chains", reg.Chains()))
	artifact, err := registry.LoadArtifact(*artifactPath)
	if err != nil {
		die("%v", err)
	}
	creationCode, err := artifact.CreationCode()
	if err != nil {
		die("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var chains []*funder.Chain
	for _, cc := range validated {
		if !settings.App.ChainIDs.Contains(cc.ID) {
			continue
		}
		c, err := offlineChain(cc, reg, creationCode, lg)
		if err != nil {
			lg.Error("skipping chain", zap.Uint64("chain", cc.ID), zap.Error(err))
			continue
		}
		if cmd != "tree" {
			if err := connect(ctx, c, cc, settings, *promptKey, lg); err != nil {
				lg.Error("skipping chain", zap.Uint64("chain", cc.ID), zap.Error(err))
				continue
			}
		}
		chains = append(chains, c)
	}
	if len(chains) == 0 {
		die("no chain to process")
	}

	switch cmd {
	case "tree":
		for _, c := range chains {
			printTrees(c.Name, funder.Trees(c))
		}
	case "balances":
		for _, c := range chains {
			printBalances(c.Name, funder.DepositoryBalances(ctx, c))
		}
	case "deploy":
		for _, c := range chains {
			printDeployReport(c.Name, funder.DeployDepositories(ctx, c))
		}
	case "run":
		if *once {
			printRunReport(funder.RunChains(ctx, chains))
			return
		}
		serveMetrics(ctx, settings.App.MetricsPort, lg)
		loop(ctx, chains, settings.App.RunInterval, lg)
	}
}

func loop(ctx context.Context, chains []*funder.Chain, interval time.Duration, lg *zap.Logger) {
	lg.Info("starting", zap.Int("chains", len(chains)), zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		printRunReport(funder.RunChains(ctx, chains))
		select {
		case <-ctx.Done():
			lg.Info("stopping")
			return
		case <-ticker.C:
		}
	}
}

func serveMetrics(ctx context.Context, port int, lg *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("listen and serve", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
}
