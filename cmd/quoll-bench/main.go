// quoll-bench seeds a quoll database with documents across several
// collections and reports per-phase throughput. It can run against the
// pure in-memory store, a single-file store, or Redis (falling back to an
// embedded miniredis when no address is given).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fatih/color"
	"github.com/goccy/go-yaml"
	goredis "github.com/redis/go-redis/v9"

	quoll "github.com/quolldb/quoll"
	"github.com/quolldb/quoll/store"
	redisstore "github.com/quolldb/quoll/store/redis"
)

type benchConfig struct {
	Store       string `yaml:"store"`
	File        string `yaml:"file"`
	RedisAddr   string `yaml:"redis_addr"`
	Collections int    `yaml:"collections"`
	Docs        int    `yaml:"docs"`
	Concurrency int    `yaml:"concurrency"`
}

func defaults() benchConfig {
	return benchConfig{
		Store:       "memory",
		Collections: 4,
		Docs:        100000,
		Concurrency: 64,
	}
}

func main() {
	cfg := defaults()

	var configPath string
	flag.StringVar(&configPath, "config", "", "YAML config file; flags override its values")
	storeKind := flag.String("store", "", "backing store: memory, file, or redis")
	filePath := flag.String("file", "", "backing file for -store=file")
	redisAddr := flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	collections := flag.Int("collections", 0, "number of collections to spread documents across")
	docs := flag.Int("docs", 0, "total documents to insert")
	concurrency := flag.Int("concurrency", 0, "number of concurrent writers")
	flag.Parse()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			fatalf("read config: %v", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			fatalf("parse config: %v", err)
		}
	}

	if *storeKind != "" {
		cfg.Store = *storeKind
	}
	if *filePath != "" {
		cfg.File = *filePath
	}
	if *redisAddr != "" {
		cfg.RedisAddr = *redisAddr
	}
	if *collections > 0 {
		cfg.Collections = *collections
	}
	if *docs > 0 {
		cfg.Docs = *docs
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}

	if cfg.Collections <= 0 || cfg.Docs <= 0 || cfg.Concurrency <= 0 {
		fatalf("collections, docs, and concurrency must be > 0")
	}

	ctx := context.Background()

	backing, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer cleanup()

	builder := quoll.New().WithMetricsEnabled(true).WithLatencyHistograms(true)
	if backing != nil {
		builder = builder.WithStore(backing)
	} else if cfg.File != "" {
		builder = builder.WithFile(cfg.File)
	} else {
		builder = builder.InMemory()
	}

	db, err := builder.Build(ctx)
	if err != nil {
		fatalf("open database: %v", err)
	}

	heading := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)

	heading.Printf("quoll-bench: store=%s collections=%d docs=%d concurrency=%d\n",
		cfg.Store, cfg.Collections, cfg.Docs, cfg.Concurrency)

	colls := make([]*quoll.Collection, cfg.Collections)
	for i := range colls {
		coll, err := db.GetCollection(ctx, fmt.Sprintf("bench-%02d", i))
		if err != nil {
			fatalf("open collection: %v", err)
		}
		colls[i] = coll
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	startSeed := time.Now()

	wg.Add(cfg.Concurrency)
	for w := 0; w < cfg.Concurrency; w++ {
		go func() {
			defer wg.Done()
			for {
				n := next.Add(1) - 1
				if n >= int64(cfg.Docs) {
					return
				}
				doc := quoll.Document{
					"seq":     n,
					"payload": fmt.Sprintf("document-%d", n),
				}
				if _, err := colls[n%int64(cfg.Collections)].Insert(ctx, doc); err != nil {
					fatalf("insert: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	seedDur := time.Since(startSeed)
	ok.Printf("seed: %d docs in %s (%.0f docs/sec)\n",
		cfg.Docs, seedDur.Round(time.Millisecond), float64(cfg.Docs)/seedDur.Seconds())

	startCommit := time.Now()
	if err := db.Commit(ctx); err != nil {
		fatalf("commit: %v", err)
	}
	ok.Printf("commit: %s\n", time.Since(startCommit).Round(time.Millisecond))

	var total int64
	for _, coll := range colls {
		n, err := coll.Size(ctx)
		if err != nil {
			fatalf("size: %v", err)
		}
		total += n
	}
	if total != int64(cfg.Docs) {
		fatalf("verify: expected %d documents, found %d", cfg.Docs, total)
	}
	ok.Printf("verify: %d documents across %d collections\n", total, len(db.ListCollectionNames(ctx)))

	snapshot := db.MetricsSnapshot()
	fmt.Printf("inserted=%d commits=%d\n",
		snapshot.Counters[quoll.MetricDocumentInserted],
		snapshot.Counters[quoll.MetricCommit])

	if err := db.Close(ctx); err != nil {
		fatalf("close: %v", err)
	}
	ok.Println("closed cleanly")
}

// openStore resolves the redis backing store when requested. For memory
// and file stores it returns nil and lets the builder open them.
func openStore(ctx context.Context, cfg benchConfig) (store.Store, func(), error) {
	if cfg.Store != "redis" {
		return nil, func() {}, nil
	}

	addr := cfg.RedisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}

	client := goredis.NewUniversalClient(&goredis.UniversalOptions{Addrs: []string{addr}})
	if err := client.Ping(ctx).Err(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	st, err := redisstore.New(redisstore.Config{
		Client:     client,
		KeyPrefix:  "quoll-bench",
		OwnsClient: true,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return st, cleanup, nil
}

func fatalf(format string, args ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
