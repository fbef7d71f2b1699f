// pcc - Pascal-like compiler driver (spec §6 "External interfaces").
//
// Usage: pcc <mode> <input-file>
//
//	-l   lex only: dump each token on its own line
//	-p   parse: dump the parse tree, then the symbol tables
//	-g   generate assembly (no optimizer)
//	-o   generate assembly, peephole-optimize, then write
//
// With no flag, pcc prints a one-line banner and exits. The output file
// name is derived from the input path by overwriting its last three
// characters with "asm".
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/anthropic-exercises/pcc/internal/codegen"
	"github.com/anthropic-exercises/pcc/internal/lexer"
	"github.com/anthropic-exercises/pcc/internal/parser"
	"github.com/anthropic-exercises/pcc/internal/peephole"
	"github.com/anthropic-exercises/pcc/internal/token"
)

func main() {
	os.Exit(submain())
}

func submain() int {
	args := os.Args[1:]
	if len(args) == 0 {
		printBanner()
		return 0
	}
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: pcc <mode> <input-file>\n")
		return 1
	}
	mode, path := args[0], args[1]

	in, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pcc: cannot open %s: %v\n", path, err)
		return 2
	}
	defer in.Close()

	switch mode {
	case "-l":
		return runLex(in)
	case "-p":
		return runParse(in)
	case "-g":
		return runGenerate(in, path, false)
	case "-o":
		return runGenerate(in, path, true)
	default:
		printBanner()
		return 0
	}
}

func printBanner() {
	fmt.Println("pcc - a Pascal-like compiler")
}

// runLex implements mode -l: dump each token on its own line.
func runLex(in *os.File) int {
	lx := lexer.New(in)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for {
		tok, err := lx.Next()
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			return 1
		}
		fmt.Fprintf(out, "%-4d %-4d %-16s %s\n", tok.Line, tok.Col, tok.Kind, tok.Literal)
		if tok.Kind == token.EOF {
			return 0
		}
	}
}

// runParse implements mode -p: dump the parse tree, then the symbol
// tables.
func runParse(in *os.File) int {
	p := parser.New(in)
	prog, err := p.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	parser.PrintTree(out, prog)
	return 0
}

// runGenerate implements modes -g and -o: generate assembly, optionally
// peephole-optimize it, then write it to the derived output file.
func runGenerate(in *os.File, path string, optimize bool) int {
	p := parser.New(in)
	prog, err := p.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	instrs := codegen.Generate(prog)
	if optimize {
		instrs = peephole.Optimize(instrs)
	}

	outPath := outputPath(path)
	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pcc: cannot create %s: %v\n", outPath, err)
		return 2
	}
	defer f.Close()

	out := bufio.NewWriter(f)
	for _, in := range instrs {
		fmt.Fprintln(out, in.String())
	}
	return firstErr(out.Flush())
}

func firstErr(err error) int {
	if err != nil {
		fmt.Fprintf(os.Stderr, "pcc: write error: %v\n", err)
		return 2
	}
	return 0
}

// outputPath derives the assembly output filename by overwriting the
// input path's last three characters with "asm" (spec §6).
func outputPath(path string) string {
	if len(path) < 3 {
		return path + ".asm"
	}
	return path[:len(path)-3] + "asm"
}
