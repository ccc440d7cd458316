// Command korectl is a small inspection CLI for a kore data directory: open
// it, run one operation, print the result, exit. It exists to give the
// engine a real non-test consumer the way guycipher-k4/server_example gives
// k4 one and johnjansen-torua/cmd gives its node/coordinator engines one —
// just over argv instead of a socket.
//
// Usage:
//
//	korectl -data <dir> <command> [args...]
//
// Commands:
//
//	get <key>
//	put <key> <value>
//	scan <prefix>
//	vector-search <collection> <k> <comma,separated,floats>
//	manifest
//
// The data directory defaults to $KORE_DATA_DIR, falling back to
// kore's own default (pkg/options.DefaultDataDir) if that is unset too.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/koredb/kore/pkg/kore"
	"github.com/koredb/kore/pkg/options"
	"github.com/koredb/kore/pkg/seginfo"
)

// getenv retrieves an environment variable with a default fallback value,
// matching johnjansen-torua/cmd's own helper of the same name and shape.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	dataDir := flag.String("data", getenv("KORE_DATA_DIR", options.DefaultDataDir), "kore data directory")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	command, rest := args[0], args[1:]

	ctx := context.Background()
	inst, err := kore.Open(ctx, "korectl", options.WithDataDir(*dataDir))
	if err != nil {
		fatalf("open %s: %v", *dataDir, err)
	}
	defer inst.Close()

	switch strings.ToUpper(command) {
	case "GET":
		runGet(inst, rest)
	case "PUT":
		runPut(inst, rest)
	case "SCAN":
		runScan(inst, rest)
	case "VECTOR-SEARCH":
		runVectorSearch(inst, rest)
	case "MANIFEST":
		runManifest(inst, rest)
	default:
		fatalf("unknown command %q", command)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `korectl -data <dir> <command> [args...]

Commands:
  get <key>
  put <key> <value>
  scan <prefix>
  vector-search <collection> <k> <comma,separated,floats>
  manifest`)
}

func runGet(inst *kore.Instance, args []string) {
	if len(args) != 1 {
		fatalf("get requires exactly one key")
	}
	v, ok := inst.Get([]byte(args[0]))
	if !ok {
		fmt.Println("(not found)")
		return
	}
	fmt.Println(string(v))
}

func runPut(inst *kore.Instance, args []string) {
	if len(args) != 2 {
		fatalf("put requires a key and a value")
	}
	if err := inst.Put([]byte(args[0]), []byte(args[1]), true); err != nil {
		fatalf("put: %v", err)
	}
	fmt.Println("OK")
}

func runScan(inst *kore.Instance, args []string) {
	if len(args) != 1 {
		fatalf("scan requires exactly one prefix")
	}
	results := inst.ScanPrefix([]byte(args[0]))
	for k, v := range results {
		fmt.Printf("%s\t%s\n", k, string(v))
	}
}

func runVectorSearch(inst *kore.Instance, args []string) {
	if len(args) != 3 {
		fatalf("vector-search requires a collection, k, and a comma-separated vector")
	}
	collection := args[0]
	k, err := strconv.Atoi(args[1])
	if err != nil {
		fatalf("vector-search: invalid k %q: %v", args[1], err)
	}
	query, err := parseVector(args[2])
	if err != nil {
		fatalf("vector-search: %v", err)
	}

	for _, r := range inst.VectorSearch(collection, query, k) {
		fmt.Printf("%s\t%f\n", r.ID, r.Score)
	}
}

func runManifest(inst *kore.Instance, args []string) {
	if len(args) != 0 {
		fatalf("manifest takes no arguments")
	}
	names, err := seginfo.ReadManifest(inst.DataDir())
	if err != nil {
		fatalf("manifest: %v", err)
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "korectl: "+format+"\n", args...)
	os.Exit(1)
}
