// Package main starts the session counter app.
//
// /get increments a per-session counter, /remove destroys the session, and
// /regenerate issues a new session id while keeping the counter.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/sessionstore/internal/cmd/sessiond"
)

func main() {
	cfg, err := sessiond.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[SESSIOND] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sessiond.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
