package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/latticechain/authmap/storage"
	"github.com/latticechain/authmap/trie"
)

var (
	version = "v0.1.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	cmd := args[0]
	fs := flag.NewFlagSet("authmap "+cmd, flag.ContinueOnError)
	verbosity := fs.Int("verbosity", 3, "Log level 0-5 (0=silent, 5=trace)")
	datadir := fs.String("datadir", "", "Pebble data directory (omit for an ephemeral in-memory map)")
	cacheSize := fs.Int("cache", 0, "Node cache size in bytes (0 disables caching)")
	proofPath := fs.String("proof", "", "Path to a proof file (prove writes it, verify reads it)")
	rootHex := fs.String("root", "", "Expected root hash, hex-encoded (verify)")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Printf("authmap %s (commit %s)\n", version, commit)
		return 0
	}

	setupLogging(*verbosity)

	switch cmd {
	case "put":
		return cmdPut(fs.Args(), *datadir, *cacheSize)
	case "get":
		return cmdGet(fs.Args(), *datadir, *cacheSize)
	case "prove":
		return cmdProve(fs.Args(), *datadir, *cacheSize, *proofPath)
	case "verify":
		return cmdVerify(fs.Args(), *proofPath, *rootHex)
	default:
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `authmap: exercise a persistent authenticated map from the command line

Usage:
  authmap put    -datadir DIR KEY VALUE
  authmap get    -datadir DIR KEY
  authmap prove  -datadir DIR -proof FILE KEY [KEY...]
  authmap verify -proof FILE -root HEX [KEY...]`)
}

func openMap(datadir string, cacheSize int) (*trie.Map, func() error, error) {
	var db storage.Database
	closer := func() error { return nil }

	if datadir == "" {
		db = storage.NewMemoryDB()
	} else {
		abs, err := filepath.Abs(datadir)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve datadir: %w", err)
		}
		pdb, err := storage.OpenPebbleDB(abs)
		if err != nil {
			return nil, nil, fmt.Errorf("open pebble db at %s: %w", abs, err)
		}
		db = pdb
		closer = pdb.Close
	}

	var opts []trie.Option
	if cacheSize > 0 {
		opts = append(opts, trie.WithCacheSize(cacheSize))
	}
	return trie.New(db, opts...), closer, nil
}

func cmdPut(args []string, datadir string, cacheSize int) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: authmap put -datadir DIR KEY VALUE")
		return 2
	}
	m, closeDB, err := openMap(datadir, cacheSize)
	if err != nil {
		log.Error("open map", "err", err)
		return 1
	}
	defer closeDB()

	if err := m.Put([]byte(args[0]), []byte(args[1])); err != nil {
		log.Error("put failed", "err", err)
		return 1
	}
	root, err := m.RootHash()
	if err != nil {
		log.Error("root hash", "err", err)
		return 1
	}
	fmt.Printf("root %s\n", hex.EncodeToString(root[:]))
	return 0
}

func cmdGet(args []string, datadir string, cacheSize int) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: authmap get -datadir DIR KEY")
		return 2
	}
	m, closeDB, err := openMap(datadir, cacheSize)
	if err != nil {
		log.Error("open map", "err", err)
		return 1
	}
	defer closeDB()

	v, err := m.Get([]byte(args[0]))
	if err != nil {
		log.Error("get failed", "err", err)
		return 1
	}
	if v == nil {
		fmt.Println("<absent>")
		return 1
	}
	fmt.Println(string(v))
	return 0
}

func cmdProve(args []string, datadir string, cacheSize int, proofPath string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: authmap prove -datadir DIR -proof FILE KEY [KEY...]")
		return 2
	}
	if proofPath == "" {
		fmt.Fprintln(os.Stderr, "authmap prove: -proof is required")
		return 2
	}
	m, closeDB, err := openMap(datadir, cacheSize)
	if err != nil {
		log.Error("open map", "err", err)
		return 1
	}
	defer closeDB()

	keys := make([][]byte, len(args))
	for i, k := range args {
		keys[i] = []byte(k)
	}

	proof, err := m.ProveMulti(keys)
	if err != nil {
		log.Error("prove failed", "err", err)
		return 1
	}
	wire, err := trie.EncodeProof(proof)
	if err != nil {
		log.Error("encode proof", "err", err)
		return 1
	}
	if err := os.WriteFile(proofPath, wire, 0o644); err != nil {
		log.Error("write proof file", "err", err)
		return 1
	}

	root, err := m.RootHash()
	if err != nil {
		log.Error("root hash", "err", err)
		return 1
	}
	fmt.Printf("root %s\n", hex.EncodeToString(root[:]))
	fmt.Printf("proof written to %s (%d bytes, %d entries)\n", proofPath, len(wire), len(proof.Entries))
	return 0
}

func cmdVerify(args []string, proofPath, rootHex string) int {
	if proofPath == "" || rootHex == "" {
		fmt.Fprintln(os.Stderr, "usage: authmap verify -proof FILE -root HEX [KEY...]")
		return 2
	}
	rootBytes, err := hex.DecodeString(strings.TrimPrefix(rootHex, "0x"))
	if err != nil || len(rootBytes) != trie.HashSize {
		fmt.Fprintf(os.Stderr, "authmap verify: -root must be a %d-byte hex hash\n", trie.HashSize)
		return 2
	}
	var root trie.Hash
	copy(root[:], rootBytes)

	wire, err := os.ReadFile(proofPath)
	if err != nil {
		log.Error("read proof file", "err", err)
		return 1
	}
	proof, err := trie.DecodeProof(wire)
	if err != nil {
		log.Error("decode proof", "err", err)
		return 1
	}

	answers, err := trie.Verify(proof, root)
	if err != nil {
		reportVerifyError(err)
		return 1
	}

	keys := args
	if len(keys) == 0 {
		for _, k := range proof.RequestedKeys {
			keys = append(keys, string(k))
		}
	}
	for _, k := range keys {
		v, ok := answers[k]
		if !ok {
			fmt.Printf("%s: not covered by this proof\n", k)
			continue
		}
		if v == nil {
			fmt.Printf("%s: absent\n", k)
		} else {
			fmt.Printf("%s: %s\n", k, string(v))
		}
	}
	return 0
}

func reportVerifyError(err error) {
	var mismatch *trie.ProofRootMismatchError
	var malformed *trie.ProofMalformedError
	var uncovered *trie.ProofKeyUncoveredError
	switch {
	case errors.As(err, &mismatch):
		log.Error("proof rejected: root mismatch", "err", err)
	case errors.As(err, &malformed):
		log.Error("proof rejected: malformed", "err", err)
	case errors.As(err, &uncovered):
		log.Error("proof rejected: key uncovered", "err", err)
	default:
		log.Error("proof rejected", "err", err)
	}
}

func setupLogging(verbosity int) {
	var lvl slog.Level
	switch {
	case verbosity <= 0:
		lvl = log.LevelCrit + 1
	case verbosity == 1:
		lvl = slog.LevelError
	case verbosity == 2:
		lvl = slog.LevelWarn
	case verbosity == 3:
		lvl = slog.LevelInfo
	case verbosity == 4:
		lvl = slog.LevelDebug
	default:
		lvl = log.LevelTrace
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
}
