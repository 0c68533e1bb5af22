// cmd/linhashctl/main.go
//
// linhashctl - command-line front end for a linhash index file.
//
// Usage:
//
//	linhashctl [--config path] [--db path] <put|get|update|contains|stats> [args...]
//
// Each invocation opens the index, runs exactly one operation, and
// closes it; there is no REPL or long-lived server.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"linhash/internal/config"
	"linhash/internal/logging"
	"linhash/pkg/linhash"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("linhashctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML/JSON config file")
	dbPath := fs.String("db", "", "override the index file path")
	keySize := fs.Uint64("keysize", 0, "override the fixed key size in bytes")
	valSize := fs.Uint64("valsize", 0, "override the fixed value size in bytes")
	noLock := fs.Bool("no-lock", false, "skip the advisory single-writer flock")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(stderr, "usage: linhashctl [--config path] [--db path] <put|get|update|contains|stats> ...")
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if *dbPath != "" {
		cfg.Path = *dbPath
	}
	if *keySize != 0 {
		cfg.KeySize = *keySize
	}
	if *valSize != 0 {
		cfg.ValSize = *valSize
	}
	if *noLock {
		cfg.Lock = false
	}

	log := logging.New(stderr)

	idx, err := linhash.Open(linhash.Options{
		Path:    cfg.Path,
		KeySize: cfg.KeySize,
		ValSize: cfg.ValSize,
		Lock:    cfg.Lock,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error opening %s: %v\n", cfg.Path, err)
		return 1
	}
	defer idx.Close()

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "put":
		return doPut(idx, log, stdout, stderr, cmdArgs)
	case "get":
		return doGet(idx, log, stdout, stderr, cmdArgs)
	case "update":
		return doUpdate(idx, log, stdout, stderr, cmdArgs)
	case "contains":
		return doContains(idx, log, stdout, stderr, cmdArgs)
	case "stats":
		return doStats(idx, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return 2
	}
}

func decodeHexArgs(stderr *os.File, args []string) ([]byte, []byte, bool) {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "missing <key-hex> argument")
		return nil, nil, false
	}
	key, err := hex.DecodeString(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "invalid hex key: %v\n", err)
		return nil, nil, false
	}
	if len(args) < 2 {
		return key, nil, true
	}
	val, err := hex.DecodeString(args[1])
	if err != nil {
		fmt.Fprintf(stderr, "invalid hex value: %v\n", err)
		return nil, nil, false
	}
	return key, val, true
}

func doPut(idx *linhash.Index, log *logging.Logger, stdout, stderr *os.File, args []string) int {
	key, val, ok := decodeHexArgs(stderr, args)
	if !ok || val == nil {
		fmt.Fprintln(stderr, "usage: linhashctl put <key-hex> <val-hex>")
		return 2
	}
	err := idx.Put(key, val)
	log.Op("put", err)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func doGet(idx *linhash.Index, log *logging.Logger, stdout, stderr *os.File, args []string) int {
	key, _, ok := decodeHexArgs(stderr, args)
	if !ok {
		fmt.Fprintln(stderr, "usage: linhashctl get <key-hex>")
		return 2
	}
	val, found, err := idx.Get(key)
	log.Op("get", err)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if !found {
		fmt.Fprintln(stdout, "(not found)")
		return 1
	}
	fmt.Fprintln(stdout, hex.EncodeToString(val))
	return 0
}

func doUpdate(idx *linhash.Index, log *logging.Logger, stdout, stderr *os.File, args []string) int {
	key, val, ok := decodeHexArgs(stderr, args)
	if !ok || val == nil {
		fmt.Fprintln(stderr, "usage: linhashctl update <key-hex> <val-hex>")
		return 2
	}
	updated, err := idx.Update(key, val)
	log.Op("update", err)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if !updated {
		fmt.Fprintln(stdout, "(not found)")
		return 1
	}
	return 0
}

func doContains(idx *linhash.Index, log *logging.Logger, stdout, stderr *os.File, args []string) int {
	key, _, ok := decodeHexArgs(stderr, args)
	if !ok {
		fmt.Fprintln(stderr, "usage: linhashctl contains <key-hex>")
		return 2
	}
	found, err := idx.Contains(key)
	log.Op("contains", err)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, found)
	if !found {
		return 1
	}
	return 0
}

func doStats(idx *linhash.Index, stdout, stderr *os.File) int {
	stats, err := idx.Stats()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "nbits=%d nitems=%d nbuckets=%d load_factor=%.3f free_page=%d num_free=%d file_size=%d\n",
		stats.NBits, stats.NItems, stats.NBuckets, stats.LoadFactor,
		stats.StoreStats.FreePage, stats.StoreStats.NumFree, stats.StoreStats.FileSize)
	return 0
}
