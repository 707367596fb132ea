// Command gojodb-shell is an interactive, local REPL over the storage
// engine core: a B+Tree index reachable through PUT/GET/DELETE/SCAN, and a
// copy-on-write trie reachable through TPUT/TGET, in place of the
// standalone server's raw TCP line protocol — this core has no
// catalog/transaction layer to serve a network client against.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/hashicorp/go-hclog"

	"github.com/sushant-115/gojodb-storage/core/indexing/btree"
	"github.com/sushant-115/gojodb-storage/core/primer/trie"
	"github.com/sushant-115/gojodb-storage/core/storage/buffer"
	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
	"github.com/sushant-115/gojodb-storage/core/storage/diskscheduler"
	"github.com/sushant-115/gojodb-storage/pkg/config"
	"github.com/sushant-115/gojodb-storage/pkg/logger"
	"github.com/sushant-115/gojodb-storage/pkg/telemetry"
)

type shell struct {
	cli   hclog.Logger
	index btree.IndexService
	store *trie.TrieStore
}

func main() {
	dbPath := flag.String("db", "", "path to the database file (overrides config default)")
	logLevel := flag.String("log-level", "", "cli log level: trace|debug|info|warn|error")
	flag.Parse()

	cfg := config.Default()
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *logLevel != "" {
		cfg.Logger.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	cli := hclog.New(&hclog.LoggerOptions{
		Name:   "gojodb-shell",
		Level:  hclog.LevelFromString(strings.ToUpper(cfg.Logger.Level)),
		Output: os.Stderr,
	})

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		cli.Error("failed to build engine logger", "error", err)
		os.Exit(1)
	}
	defer zlog.Sync()

	ctx := context.Background()
	tel, shutdownTelemetry, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		cli.Error("failed to start telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(ctx)

	metrics, err := telemetry.NewEngineMetrics(tel)
	if err != nil {
		cli.Error("failed to build engine metrics", "error", err)
		os.Exit(1)
	}

	_, statErr := os.Stat(cfg.DBPath)
	dm, err := diskmanager.Open(cfg.DBPath, cfg.PageSize, os.IsNotExist(statErr))
	if err != nil {
		cli.Error("failed to open database file", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer dm.Close()

	sched := diskscheduler.New(dm, zlog, cfg.DiskWriteRateLimit, metrics)
	defer sched.Shutdown()

	bpm := buffer.New(buffer.Config{NumFrames: cfg.NumFrames, KDist: cfg.KDist, PageSize: cfg.PageSize}, sched, zlog, metrics)
	defer bpm.FlushAllPages(ctx)

	indexHeaderID, err := resolveIndexHeader(ctx, dm, bpm)
	if err != nil {
		cli.Error("failed to resolve index header page", "error", err)
		os.Exit(1)
	}

	tree := btree.New[[]byte, []byte](bpm, indexHeaderID, btree.BytesComparator, btree.IdentityBytesCodec, btree.IdentityBytesCodec, cfg.LeafMaxSize, cfg.InternalMaxSize, zlog)

	sh := &shell{
		cli:   cli,
		index: btree.NewByteKeyedIndexService(tree),
		store: trie.NewTrieStore(),
	}

	cli.Info("gojodb-shell ready", "db", cfg.DBPath, "leaf_max", cfg.LeafMaxSize, "internal_max", cfg.InternalMaxSize)
	sh.run(ctx)
}

// resolveIndexHeader returns the buffer-pool page that backs the B+Tree's
// root pointer, reusing the one persisted in the disk manager's own file
// header across restarts, or allocating a fresh one on a brand-new file.
func resolveIndexHeader(ctx context.Context, dm *diskmanager.DiskManager, bpm *buffer.BufferPoolManager) (diskmanager.PageID, error) {
	id, err := dm.RootPageID()
	if err != nil {
		return diskmanager.InvalidPageID, err
	}
	if id != diskmanager.InvalidPageID {
		return id, nil
	}
	id = bpm.NewPage(ctx)
	if err := dm.SetRootPageID(id); err != nil {
		return diskmanager.InvalidPageID, err
	}
	return id, nil
}

func (s *shell) run(ctx context.Context) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gojodb> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		s.cli.Error("failed to start readline", "error", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("exiting")
				return
			}
			s.cli.Error("readline error", "error", err)
			return
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if exit := s.dispatch(ctx, args); exit {
			return
		}
	}
}

func (s *shell) dispatch(ctx context.Context, args []string) (exit bool) {
	switch strings.ToUpper(args[0]) {
	case "PUT":
		if len(args) < 3 {
			fmt.Println("usage: PUT <key> <value...>")
			return false
		}
		ok := s.index.Insert(ctx, []byte(args[1]), []byte(strings.Join(args[2:], " ")))
		if ok {
			fmt.Println("OK")
		} else {
			fmt.Println("ERROR key already exists")
		}
	case "GET":
		if len(args) < 2 {
			fmt.Println("usage: GET <key>")
			return false
		}
		v, ok := s.index.GetValue(ctx, []byte(args[1]))
		if !ok {
			fmt.Println("NOT_FOUND")
		} else {
			fmt.Printf("OK %s\n", string(v))
		}
	case "DELETE":
		if len(args) < 2 {
			fmt.Println("usage: DELETE <key>")
			return false
		}
		s.index.Remove(ctx, []byte(args[1]))
		fmt.Println("OK")
	case "SCAN":
		var sc btree.Scanner
		if len(args) >= 3 && strings.ToUpper(args[1]) == "FROM" {
			sc = s.index.ScanFrom(ctx, []byte(args[2]))
		} else {
			sc = s.index.Scan(ctx)
		}
		n := 0
		for ; !sc.IsEnd(); sc.Next() {
			fmt.Printf("%s = %s\n", string(sc.Key()), string(sc.Value()))
			n++
		}
		fmt.Printf("OK %d entries\n", n)
	case "TPUT":
		if len(args) < 3 {
			fmt.Println("usage: TPUT <key> <value...>")
			return false
		}
		trie.StorePut(s.store, args[1], strings.Join(args[2:], " "))
		fmt.Println("OK")
	case "TGET":
		if len(args) < 2 {
			fmt.Println("usage: TGET <key>")
			return false
		}
		v, ok := trie.StoreGet[string](s.store, args[1])
		if !ok {
			fmt.Println("NOT_FOUND")
		} else {
			fmt.Printf("OK %s\n", v)
		}
	case "TDELETE":
		if len(args) < 2 {
			fmt.Println("usage: TDELETE <key>")
			return false
		}
		s.store.Remove(args[1])
		fmt.Println("OK")
	case "HELP":
		printHelp()
	case "EXIT", "QUIT":
		fmt.Println("exiting")
		return true
	default:
		fmt.Printf("unknown command: %s (try HELP)\n", args[0])
	}
	return false
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  PUT <key> <value...>     insert into the B+Tree index")
	fmt.Println("  GET <key>                look up in the B+Tree index")
	fmt.Println("  DELETE <key>             remove from the B+Tree index")
	fmt.Println("  SCAN                     walk the B+Tree index in key order")
	fmt.Println("  SCAN FROM <key>          walk the index starting at key's lower bound")
	fmt.Println("  TPUT <key> <value...>    insert into the trie store")
	fmt.Println("  TGET <key>               look up in the trie store")
	fmt.Println("  TDELETE <key>            remove from the trie store")
	fmt.Println("  HELP / EXIT / QUIT")
}
