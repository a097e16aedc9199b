// Command linktrades links or unlinks trades into shared reporting groups
// and prints group statistics.
//
// Usage:
//
//	linktrades link 12 14 19    # assign a fresh group id to trades 12, 14, 19
//	linktrades unlink 12 14     # clear group membership
//	linktrades stats 5          # print statistics for group 5
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"tradeledger/internal/adapters/logger"
	"tradeledger/internal/adapters/sqlite"
)

func main() {
	if len(os.Args) < 3 {
		usage()
	}

	// Only the database path matters here; the full import configuration
	// (sources, multipliers) is not required for linking.
	_ = godotenv.Load()
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/tradeledger.db"
	}

	appLogger := logger.NewStdLogger(logger.LevelWarn)
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: dbPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open database: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	switch os.Args[1] {
	case "link":
		ids := parseIDs(os.Args[2:])
		groupID, err := repo.Link(ctx, ids)
		if err != nil {
			log.Fatalf("FATAL: link failed: %v", err)
		}
		fmt.Printf("linked %d trades into group %d\n", len(ids), groupID)
		printStats(ctx, repo, groupID)
	case "unlink":
		ids := parseIDs(os.Args[2:])
		if err := repo.Unlink(ctx, ids); err != nil {
			log.Fatalf("FATAL: unlink failed: %v", err)
		}
		fmt.Printf("unlinked %d trades\n", len(ids))
	case "stats":
		groupID, err := strconv.ParseInt(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("FATAL: invalid group id %q", os.Args[2])
		}
		printStats(ctx, repo, groupID)
	default:
		usage()
	}
}

func printStats(ctx context.Context, repo *sqlite.Repository, groupID int64) {
	stats, err := repo.GroupStatistics(ctx, groupID)
	if err != nil {
		log.Fatalf("FATAL: stats failed: %v", err)
	}
	fmt.Printf("group %d: trades=%d pnl=%s commission=%s\n",
		stats.GroupID, stats.TradeCount, stats.TotalPNL, stats.TotalCommission)
}

func parseIDs(args []string) []int64 {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			log.Fatalf("FATAL: invalid trade id %q", a)
		}
		ids = append(ids, id)
	}
	return ids
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: linktrades link <trade-id>... | unlink <trade-id>... | stats <group-id>")
	os.Exit(2)
}
