package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ergochat/readline"
	zerog "github.com/jburman/ZeroG-sub001"
	"github.com/jburman/ZeroG-sub001/sqlite"
	"github.com/jburman/ZeroG-sub001/versions"
)

// REPL per se.
type REPL struct {
	ix      *zerog.Indexer
	ledger  *versions.Ledger
	backend *sqlite.Provider
	catalog catalog
	rl      *readline.Instance
}

var ErrUsage = errors.New("usage")

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("provision"),
	readline.PcItem("types"),
	readline.PcItem("drop"),
	readline.PcItem("truncate"),

	readline.PcItem("index"),
	readline.PcItem("remove"),

	readline.PcItem("find"),
	readline.PcItem("count"),
	readline.PcItem("exists"),
	readline.PcItem("iter"),
	readline.PcItem("explain"),

	readline.PcItem("stats"),
	readline.PcItem("clean"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func (repl *REPL) Open() (err error) {
	repl.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     ".zerogq_cmd_log.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	repl.rl.CaptureExitSignal()
	return
}

func (repl *REPL) Close() error {
	if repl.rl != nil {
		_ = repl.rl.Close()
		repl.rl = nil
	}
	return nil
}

// REPL reads and runs one command. io.EOF means the session is over.
func (repl *REPL) REPL(ctx context.Context) (err error) {
	var line string
	line, err = repl.rl.Readline()
	if err == readline.ErrInterrupt {
		if len(line) == 0 {
			return io.EOF
		}
		return nil
	}
	if err != nil {
		return err
	}
	return repl.Execute(ctx, line, repl.rl)
}

// Execute runs one command line, writing results to out.
func (repl *REPL) Execute(ctx context.Context, line string, out io.Writer) (err error) {
	line = strings.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "help":
		err = repl.CommandHelp(out)
	// ----- structure -----
	case "provision":
		err = repl.CommandProvision(ctx, arg, out)
	case "types":
		err = repl.CommandTypes(out)
	case "drop":
		err = repl.CommandDrop(ctx, arg, out)
	case "truncate":
		err = repl.CommandTruncate(ctx, arg, out)
	// ----- writes -----
	case "index":
		err = repl.CommandIndex(ctx, arg, out)
	case "remove":
		err = repl.CommandRemove(ctx, arg, out)
	// ----- queries -----
	case "find":
		err = repl.CommandFind(ctx, arg, out)
	case "count":
		err = repl.CommandCount(ctx, arg, out)
	case "exists":
		err = repl.CommandExists(ctx, arg, out)
	case "iter":
		err = repl.CommandIter(ctx, arg, out)
	case "explain":
		err = repl.CommandExplain(arg, out)
	// ----- cache -----
	case "stats":
		err = repl.CommandStats(arg, out)
	case "clean":
		err = repl.CommandClean(out)
	case "exit", "quit":
		err = io.EOF
	default:
		err = fmt.Errorf("%w: command unknown: %s", ErrUsage, cmd)
	}
	return
}
