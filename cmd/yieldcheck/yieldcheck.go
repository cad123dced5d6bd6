package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"

	"github.com/stealthrocket/coop/internal/yieldcheck"
)

const usage = `
yieldcheck reports loops in cooperative task bodies that never yield.

A task scheduled by the coop runtime is only suspended at its own yield
points, so a task loop with no reachable yield starves every other task.
yieldcheck loads the named packages and flags such loops.

USAGE:
  yieldcheck [OPTIONS] [PATTERNS...]

OPTIONS:
  -v             Log analysis progress
  -h, --help     Show this help information
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verbose := flag.Bool("v", false, "log analysis progress")
	flag.Usage = func() { println(usage[1:]) }
	flag.Parse()

	patterns := flag.Args()
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	log.Printf("loading packages %v", patterns)
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedSyntax,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return err
	}
	if packages.PrintErrors(pkgs) > 0 {
		return errors.New("packages contain errors")
	}

	log.Printf("analyzing %d packages", len(pkgs))
	results := make([][]yieldcheck.Diagnostic, len(pkgs))
	var group errgroup.Group
	for i, pkg := range pkgs {
		i, pkg := i, pkg
		group.Go(func() error {
			for _, file := range pkg.Syntax {
				results[i] = append(results[i], yieldcheck.CheckFile(pkg.Fset, file)...)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	total := 0
	for _, diags := range results {
		for _, d := range diags {
			fmt.Println(d)
			total++
		}
	}
	if total > 0 {
		return fmt.Errorf("%d task loops never yield", total)
	}
	log.Printf("done")
	return nil
}
