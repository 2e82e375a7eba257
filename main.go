package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"sunscript/source/compiler"
	"sunscript/source/nativedb"
	"sunscript/source/report"
	"sunscript/source/vm"
)

func main() {
	disassemble := flag.Bool("dis", false, "print the disassembly of the compiled script")
	nativesPath := flag.String("natives", "", "path to a native database (sqlite)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: sunscript [-dis] [-natives db.sqlite] script.sc")
		os.Exit(2)
	}
	path := flag.Arg(0)
	text, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var natives *nativedb.DB
	if *nativesPath != "" {
		natives, err = nativedb.OpenSQLite(*nativesPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	settings := compiler.Settings{
		Natives: natives,
		Load: func(using string) (string, error) {
			b, e := os.ReadFile(filepath.Join(filepath.Dir(path), using))
			return string(b), e
		},
	}
	prog, rep := compiler.Compile(path, string(text), settings)
	for _, diag := range rep.All() {
		fmt.Fprintln(os.Stderr, report.Describe(diag))
	}
	if prog == nil {
		os.Exit(1)
	}
	if *disassemble {
		asm, err := vm.Disassemble(prog, natives)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Print(asm)
		return
	}
	fmt.Fprintf(os.Stderr, "compiled %s: %d bytes of code, %d statics, %d globals, %d natives\n",
		prog.Name, len(prog.Code), len(prog.Statics), len(prog.Globals), len(prog.Natives))
}
