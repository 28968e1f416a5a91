// Tabby CLI - links translated program images and inspects them
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/tabby/ir"
	"github.com/chazu/tabby/ir/wire"
	"github.com/chazu/tabby/manifest"
	"github.com/chazu/tabby/session"
	"github.com/chazu/tabby/types"
)

func logger() commonlog.Logger { return commonlog.GetLogger("tabby.cmd") }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: tabby <command> [options] image.cbor\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  link   Remove unreachable code and write the linked image\n")
	fmt.Fprintf(w, "  dump   Print the blocks of every body in an image\n")
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  tabby link prog.cbor                     # writes prog.linked.cbor\n")
	fmt.Fprintf(w, "  tabby link -entry Main.main -o out.cbor prog.cbor\n")
	fmt.Fprintf(w, "  tabby dump prog.linked.cbor\n")
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	var err error
	switch args[0] {
	case "link":
		err = link(args[1:], stdout, stderr)
	case "dump":
		err = dump(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	var usageErr usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

// options are the settings shared by the commands, after merging the
// manifest with flags.
type options struct {
	input  string
	entry  string
	output string
}

func parse(name string, args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config", "", "Directory holding tabby.toml (default: search upwards from the working directory)")
	entry := fs.String("entry", "", "Entry member, e.g. 'Main.main' or 'Main.main():void'")
	output := fs.String("o", "", "Output image path")
	verbosity := fs.Int("v", 0, "Log verbosity (-1 silences logging)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, usageError(err.Error())
	}
	if fs.NArg() != 1 {
		return nil, usageError(fmt.Sprintf("%s expects exactly one image, got %d", name, fs.NArg()))
	}

	var m *manifest.Manifest
	var err error
	if *configDir != "" {
		m, err = manifest.Load(*configDir)
	} else {
		m, err = manifest.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	level := *verbosity
	if !set["v"] && m != nil {
		level = m.Log.Verbosity
	}
	commonlog.Configure(level, m.LogPath())

	opts := &options{input: fs.Arg(0), entry: *entry, output: *output}
	if !set["entry"] && m != nil {
		opts.entry = m.Link.Entry
	}
	if !set["o"] {
		opts.output = m.OutputPath(opts.input)
	}
	if m != nil {
		logger().Debugf("using %s", m.Dir)
	}
	return opts, nil
}

func load(path string, s *session.Session) (*wire.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	u, err := wire.Decode(data, s.Blocks)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

func link(args []string, stdout, stderr io.Writer) error {
	opts, err := parse("link", args, stderr)
	if err != nil {
		return err
	}

	s := session.New(stderr)
	u, err := load(opts.input, s)
	if err != nil {
		return err
	}
	entry := u.Entry
	if opts.entry != "" {
		if entry, err = u.Find(opts.entry); err != nil {
			return err
		}
	}

	p, err := s.Link(entry, u.Code)
	if err != nil {
		return err
	}
	data, err := wire.EncodeProgram(p, s.ID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.output, data, 0644); err != nil {
		return err
	}

	printSummary(stdout, p, len(u.Code), opts.output)
	return nil
}

func printSummary(w io.Writer, p *ir.Program, bodies int, output string) {
	bold, reset := "", ""
	if useColor(w) {
		bold, reset = "\x1b[1m", "\x1b[0m"
	}
	kept := len(p.Reachable().CodeSignatures())
	fmt.Fprintf(w, "%slinked from %s%s\n", bold, p.Entry(), reset)
	for _, sig := range p.Reachable().Signatures() {
		fmt.Fprintf(w, "  %s\n", sig)
	}
	fmt.Fprintf(w, "kept %d of %d bodies, %d blocks; wrote %s\n", kept, bodies, p.VisitedBlocks(), output)
}

func dump(args []string, stdout, stderr io.Writer) error {
	opts, err := parse("dump", args, stderr)
	if err != nil {
		return err
	}
	s := session.New(stderr)
	u, err := load(opts.input, s)
	if err != nil {
		return err
	}

	bold, reset := "", ""
	if useColor(stdout) {
		bold, reset = "\x1b[1m", "\x1b[0m"
	}
	state := "unlinked"
	if u.Linked {
		state = "linked"
	}
	fmt.Fprintf(stdout, "%s image, entry %s\n", state, u.Entry)
	for _, sig := range sortedBodies(u) {
		fmt.Fprintf(stdout, "\n%s%s%s\n", bold, sig, reset)
		for _, blk := range ir.Walk(u.Code[sig]) {
			fmt.Fprintln(stdout, blk.Dump())
			if succs := blk.Successors(); len(succs) > 0 {
				fmt.Fprint(stdout, "  ->")
				for _, succ := range succs {
					fmt.Fprintf(stdout, " %d", succ.ID())
				}
				fmt.Fprintln(stdout)
			}
		}
	}
	return nil
}

// useColor follows the NO_COLOR convention and only colours terminals.
func useColor(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func sortedBodies(u *wire.Unit) []types.CodeSignature {
	sigs := make([]types.CodeSignature, 0, len(u.Code))
	for sig := range u.Code {
		if sig != u.Entry {
			sigs = append(sigs, sig)
		}
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].String() < sigs[j].String() })
	if _, ok := u.Code[u.Entry]; ok {
		sigs = append([]types.CodeSignature{u.Entry}, sigs...)
	}
	return sigs
}
