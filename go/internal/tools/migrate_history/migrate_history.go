package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/bosswatch/go/internal/dbconfig"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/history"
)

func main() {
	// 1) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ping %s: %v\n", cfg.Database, err)
		os.Exit(1)
	}

	// 2) Apply the history schema
	if _, err := pool.Exec(context.Background(), history.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Report what is there
	var rows int64
	if err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM worldboss_transitions`).Scan(&rows); err != nil {
		fmt.Fprintf(os.Stderr, "count transitions: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("history schema ready on %s@%s/%s, %d transitions recorded\n",
		cfg.User, cfg.Host, cfg.Database, rows)
}
