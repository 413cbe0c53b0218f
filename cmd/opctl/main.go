package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/punchamoorthee/ledgergate/internal/opclient"
	"go.uber.org/zap"
)

const usage = `opctl: operator tool for the ledger API

Usage:
  opctl chain new [--length=<n>] [--digest=<name>] [--file=<path>]
  opctl chain next [--file=<path>] [--url=<url>]
  opctl tail [--url=<url>]
  opctl pending [--file=<path>] [--url=<url>]
  opctl approve <id> [--file=<path>] [--url=<url>]
  opctl reject <id> [--file=<path>] [--url=<url>]
  opctl stats [--file=<path>] [--url=<url>]

Options:
  -h --help          Show this screen.
  --version          Show version.
  --length=<n>       Number of links in a new chain [default: 10000].
  --digest=<name>    md5 or sha256 [default: md5].
  --file=<path>      Seed file [default: ~/.ledgergate/chain.json].
  --url=<url>        API base URL [default: http://localhost:8080].
`

type Opts struct {
	Chain   bool
	New     bool
	Next    bool
	Tail    bool
	Pending bool
	Approve bool
	Reject  bool
	Stats   bool
	ID      string `docopt:"<id>"`
	Length  string `docopt:"--length"`
	Digest  string `docopt:"--digest"`
	File    string `docopt:"--file"`
	URL     string `docopt:"--url"`
}

func main() {
	os.Exit(run())
}

func run() int {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	parser := &docopt.Parser{HelpHandler: docopt.PrintHelpAndExit}
	o, err := parser.ParseArgs(usage, os.Args[1:], "0.1")
	if err != nil {
		logger.Error("bad arguments", zap.Error(err))
		return 2
	}
	var opts Opts
	if err := o.Bind(&opts); err != nil {
		logger.Error("bad arguments", zap.Error(err))
		return 2
	}
	opts.File = expandHome(opts.File)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := dispatch(ctx, opts); err != nil {
		logger.Error("command failed", zap.Error(err))
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, opts Opts) error {
	client := opclient.New(opts.URL, nil)

	switch {
	case opts.Chain && opts.New:
		length, err := strconv.Atoi(opts.Length)
		if err != nil {
			return fmt.Errorf("--length: %w", err)
		}
		sf, err := NewSeedFile(length, opts.Digest)
		if err != nil {
			return err
		}
		if err := sf.Save(opts.File); err != nil {
			return err
		}
		fmt.Printf("chain of %d %s links written to %s\n", sf.Length, sf.Digest, opts.File)
		return nil

	case opts.Chain && opts.Next:
		token, remaining, err := nextToken(ctx, client, opts.File)
		if err != nil {
			return err
		}
		fmt.Println(token)
		fmt.Fprintf(os.Stderr, "%d tokens left after this one\n", remaining-1)
		return nil

	case opts.Tail:
		tail, ok, err := client.Tail(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("ledger is empty: any token bootstraps the chain")
			return nil
		}
		fmt.Println(tail)
		return nil

	case opts.Pending:
		token, _, err := nextToken(ctx, client, opts.File)
		if err != nil {
			return err
		}
		views, err := client.Pending(ctx, token)
		if err != nil {
			return err
		}
		return printJSON(views)

	case opts.Approve:
		id, err := strconv.ParseInt(opts.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("<id>: %w", err)
		}
		token, _, err := nextToken(ctx, client, opts.File)
		if err != nil {
			return err
		}
		action, err := client.Approve(ctx, id, token)
		if err != nil {
			return err
		}
		return printJSON(action)

	case opts.Reject:
		id, err := strconv.ParseInt(opts.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("<id>: %w", err)
		}
		token, _, err := nextToken(ctx, client, opts.File)
		if err != nil {
			return err
		}
		discarded, err := client.Reject(ctx, id, token)
		if err != nil {
			return err
		}
		return printJSON(discarded)

	case opts.Stats:
		token, _, err := nextToken(ctx, client, opts.File)
		if err != nil {
			return err
		}
		st, err := client.Stats(ctx, token)
		if err != nil {
			return err
		}
		return printJSON(st)
	}
	return fmt.Errorf("unknown command")
}

// nextToken derives the token that authenticates against the server's
// current tail.
func nextToken(ctx context.Context, client *opclient.Client, path string) (string, int, error) {
	sf, err := LoadSeedFile(path)
	if err != nil {
		return "", 0, err
	}
	chain, err := sf.Chain()
	if err != nil {
		return "", 0, err
	}
	tail, _, err := client.Tail(ctx)
	if err != nil {
		return "", 0, err
	}
	token, err := chain.Next(tail)
	if err != nil {
		return "", 0, err
	}
	remaining, err := chain.Remaining(tail)
	if err != nil {
		return "", 0, err
	}
	return token, remaining, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
