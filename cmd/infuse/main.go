package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/serg-io/infuse.host/lib/compile"
	"github.com/serg-io/infuse.host/lib/directive"
	"github.com/serg-io/infuse.host/lib/encoding"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "compile":
		if err := runCompile(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("infuse version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`infuse - HTML template compiler

Usage:
  infuse <command> [arguments]

Commands:
  compile [files]       Compile templates in the given HTML files
  version               Print version
  help                  Show this help

Options for compile:
  --archive <file>      Write the compiled store to a binary archive
  --out <dir>           Write rewritten HTML (with template and context
                        identifiers in place) next to the archive

Examples:
  infuse compile index.html                       Report compiled templates
  infuse compile --archive app.bin pages/*.html   Compile into one archive
  infuse compile --out build/ index.html          Rewrite HTML into build/`)
}

func runCompile(args []string) error {
	var archivePath, outDir string
	var files []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--archive":
			i++
			if i == len(args) {
				return fmt.Errorf("--archive requires a file argument")
			}
			archivePath = args[i]
		case "--out":
			i++
			if i == len(args) {
				return fmt.Errorf("--out requires a directory argument")
			}
			outDir = args[i]
		default:
			files = append(files, args[i])
		}
	}

	if len(files) == 0 {
		return fmt.Errorf("no input files")
	}

	cfg := directive.DefaultConfig()
	store := compile.NewStore()

	for _, path := range files {
		doc, err := parseFile(path)
		if err != nil {
			return err
		}
		n, err := compileTemplates(doc, cfg, store)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("%s: %d template(s)\n", path, n)

		if outDir != "" {
			if err := writeRewritten(outDir, path, doc); err != nil {
				return err
			}
		}
	}

	if archivePath != "" {
		f, err := os.Create(archivePath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := encoding.Save(f, store); err != nil {
			return err
		}
		fmt.Printf("archive written to %s\n", archivePath)
	}
	return nil
}

func parseFile(path string) (*html.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return html.Parse(f)
}

// compileTemplates walks every top-level template in the document. Nested
// templates compile (and splice out) as part of their ancestor's walk.
func compileTemplates(n *html.Node, cfg *directive.Config, store *compile.Store) (int, error) {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, "template") {
		if err := compile.Walk(n, cfg, store); err != nil {
			return 0, err
		}
		return 1, nil
	}
	total := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count, err := compileTemplates(c, cfg, store)
		if err != nil {
			return total, err
		}
		total += count
	}
	return total, nil
}

func writeRewritten(outDir, path string, doc *html.Node) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	out := filepath.Join(outDir, filepath.Base(path))
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	return html.Render(f, doc)
}
