package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/pos/services/pos/internal/mongo"
)

const (
	appNamespace = "UTILS"
	appName      = "pos-utils"
	appVersion   = "0.1.0"
)

type command func(ctx context.Context, repo *mongo.BaseRepo, logger aqm.Logger) error

var commands = map[string]command{
	"seed-catalog": func(ctx context.Context, repo *mongo.BaseRepo, logger aqm.Logger) error {
		return mongo.SeedDemoCatalog(ctx, repo.GetDatabase(), logger)
	},
	"clear-catalog": func(ctx context.Context, repo *mongo.BaseRepo, logger aqm.Logger) error {
		return mongo.ClearDemoCatalog(ctx, repo.GetDatabase(), logger)
	},
	"reset-db": func(ctx context.Context, repo *mongo.BaseRepo, logger aqm.Logger) error {
		logger.Info("Dropping the POS database, this cannot be undone")
		return mongo.ResetDatabase(ctx, repo.GetDatabase(), logger)
	},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	}

	run, ok := commands[name]
	if !ok {
		fmt.Printf("Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	config, err := aqm.LoadConfig(appNamespace, os.Args[2:])
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}
	logger := aqm.NewLogger(config.GetStringOrDef("log.level", "info"))

	ctx := context.Background()
	repo := mongo.NewBaseRepo(config, logger)
	if err := repo.Start(ctx); err != nil {
		log.Fatalf("%s failed: %v", name, err)
	}
	defer repo.Stop(ctx)

	if err := run(ctx, repo, logger); err != nil {
		log.Fatalf("%s failed: %v", name, err)
	}
	logger.Info("command completed", "command", name)
}

func printUsage() {
	fmt.Printf(`%s - POS maintenance commands

Usage:
  %s <command> [options]

Commands:
  seed-catalog   Load the demo menu catalog into MongoDB
  clear-catalog  Remove the demo menu catalog and its seed record
  reset-db       Drop the POS database (USE WITH CAUTION)
  version        Show version
  help           Show this help

Environment Variables:
  UTILS_DB_MONGO_URL   MongoDB connection URL (default: mongodb://localhost:27017)
  UTILS_DB_MONGO_NAME  Database name (default: appetite_pos)
  UTILS_LOG_LEVEL      Log level: debug, info, error (default: info)

Examples:
  %s seed-catalog
  UTILS_DB_MONGO_URL=mongodb://localhost:27017 %s reset-db
`, appName, appName, appName, appName)
}
