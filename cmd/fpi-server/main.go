package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/NBICNamibia/acoustid-index/fpindex"
	"github.com/NBICNamibia/acoustid-index/index"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  fpi-server -path <data-dir> [-addr <listen-addr>]\n")
	os.Exit(1)
}

func main() {
	var (
		path        = flag.String("path", "", "path to the index directory")
		addr        = flag.String("addr", ":1736", "RPC listen address")
		cacheBlocks = flag.Int("cache-blocks", 4096, "block cache size in blocks")
	)
	flag.Parse()

	if *path == "" {
		usage()
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("could not build logger: %v", err)
	}
	defer logger.Sync() // nolint:errcheck
	sugar := logger.Sugar()

	cache, err := index.NewBlockCache(*cacheBlocks)
	if err != nil {
		sugar.Fatalw("could not build block cache", "error", err)
	}

	svc, err := fpindex.Open(*path, index.WithLogger(sugar), index.WithBlockCache(cache))
	if err != nil {
		sugar.Fatalw("could not open the index", "path", *path, "error", err)
	}

	listenAddr, cleanup, err := fpindex.StartRPC(svc, *addr)
	if err != nil {
		sugar.Fatalw("could not start RPC server", "error", err)
	}
	sugar.Infow("RPC server listening", "addr", listenAddr)

	// Wait for SIGINT or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	sugar.Infow("shutting down", "signal", sig.String())

	if err := cleanup(); err != nil {
		sugar.Fatalw("shutdown failed", "error", err)
	}
}
