package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	lg "github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/bubbletea"
	"github.com/fwojciec/codeshell/chroma"
	"github.com/fwojciec/codeshell/clipboard"
	"github.com/fwojciec/codeshell/color"
	"github.com/fwojciec/codeshell/fs"
	"github.com/fwojciec/codeshell/gcc"
	"github.com/fwojciec/codeshell/gemini"
	"github.com/fwojciec/codeshell/git"
	"github.com/fwojciec/codeshell/gitdiff"
	"github.com/fwojciec/codeshell/jsonl"
	lgtheme "github.com/fwojciec/codeshell/lipgloss"
	"github.com/fwojciec/codeshell/markdown"
	"github.com/fwojciec/codeshell/nvim"
	"github.com/fwojciec/codeshell/toml"
	"github.com/fwojciec/codeshell/worddiff"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Version is reported by --version.
var Version = "0.1.0-dev"

// cli carries the process environment the commands are built from.
type cli struct {
	in          io.Reader
	out, errOut io.Writer
	dir         string
	interactive bool // stdin and stdout are terminals
	clipboard   codeshell.Clipboard
	getenv      func(string) string

	color  string
	config string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	c := &cli{
		in:          os.Stdin,
		out:         os.Stdout,
		errOut:      os.Stderr,
		dir:         dir,
		interactive: isTerminal(os.Stdin) && isTerminal(os.Stdout),
		clipboard:   clipboard.NewSystem(),
		getenv:      os.Getenv,
	}
	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, ErrProblems) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "codeshell",
		Short:         "Editor shell core: diagnostics and reviewed batch edits",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.PersistentFlags().StringVar(&c.color, "color", "auto", "colorize output (auto|on|off)")
	root.PersistentFlags().StringVar(&c.config, "config", "", "path to "+toml.FileName+" (searched upward by default)")

	root.AddCommand(
		c.checkCmd(),
		c.applyCmd(),
		c.proposeCmd(),
		c.serveCmd(),
		c.historyCmd(),
		c.initCmd(),
	)
	return root
}

func (c *cli) checkCmd() *cobra.Command {
	var compile bool
	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Report lexical diagnostics for files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.app()
			if err != nil {
				return err
			}
			if compile {
				if err := c.withCompiler(app); err != nil {
					return err
				}
			}
			return app.Check(cmd.Context(), args)
		},
	}
	cmd.Flags().BoolVar(&compile, "compile", false, "also run the configured compiler on C and C++ files")
	return cmd
}

func (c *cli) applyCmd() *cobra.Command {
	var (
		opts    ApplyOptions
		fromClp bool
	)
	cmd := &cobra.Command{
		Use:   "apply [file]",
		Short: "Stage operations from JSON or markdown, review and commit them",
		Long: `Reads operations from file, the clipboard or stdin. Input is either a JSON
list of operations, an object with an "operations" list, or markdown whose
fenced code blocks name their target files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.app()
			if err != nil {
				return err
			}
			var r io.Reader = c.in
			switch {
			case fromClp:
				text, err := c.clipboard.Read()
				if err != nil {
					return err
				}
				r = strings.NewReader(text)
			case len(args) == 1 && args[0] != "-":
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			ops, err := app.ReadOperations(r)
			if err != nil {
				return err
			}
			return app.Apply(cmd.Context(), ops, opts)
		},
	}
	cmd.Flags().BoolVar(&fromClp, "clipboard", false, "read operations from the system clipboard")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "apply without review")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the staged batch and discard it")
	return cmd
}

func (c *cli) proposeCmd() *cobra.Command {
	var opts ApplyOptions
	cmd := &cobra.Command{
		Use:   "propose <instruction> [file]...",
		Short: "Ask the model for edits, then review and commit them",
		Long: `Sends the instruction and the files (by default those git reports as
changed) to Gemini. Requires GEMINI_API_KEY.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.app()
			if err != nil {
				return err
			}
			apiKey := c.getenv("GEMINI_API_KEY")
			if apiKey == "" {
				return errors.New("GEMINI_API_KEY environment variable is required")
			}
			client, err := gemini.NewClient(cmd.Context(), apiKey)
			if err != nil {
				return err
			}
			app.Planner = gemini.NewPlanner(client, app.Config.Planner.Model)
			app.Git = git.NewRunner()
			return app.Propose(cmd.Context(), args[0], args[1:], opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "apply without review")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the proposed batch and discard it")
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	var addr, nvimAddr string
	var origins []string
	var compile bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workspace to the browser editor over a WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.app()
			if err != nil {
				return err
			}
			if compile {
				if err := c.withCompiler(app); err != nil {
					return err
				}
			}
			if nvimAddr != "" {
				b, err := nvim.Dial(nvimAddr, app.Config.Root)
				if err != nil {
					return err
				}
				defer b.Close()
				app.Buffers = b
			}
			if addr == "" {
				addr = app.Config.Server.Addr
			}
			app.Config.Server.Origins = append(app.Config.Server.Origins, origins...)
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.errOut, "serving %s on ws://%s/ws\n", app.Config.Root, ln.Addr())
			return app.Serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&nvimAddr, "nvim", "", "keep open buffers in the Neovim instance listening at this address")
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "also accept browser pages from this origin (repeatable)")
	cmd.Flags().BoolVar(&compile, "compile", false, "enable the configured compiler for the check method")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List committed batches",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			app, err := c.app()
			if err != nil {
				return err
			}
			return app.History()
		},
	}
}

func (c *cli) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default " + toml.FileName + " in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			app := &App{Out: c.out, Err: c.errOut, Dir: c.dir}
			path, err := app.Init()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "wrote %s\n", path)
			return nil
		},
	}
}

// app loads the configuration and wires the adapters shared by commands.
func (c *cli) app() (*App, error) {
	var (
		cfg codeshell.Config
		err error
	)
	if c.config != "" {
		cfg, err = toml.Load(c.config)
	} else {
		cfg, err = toml.LoadFrom(c.dir)
	}
	if err != nil {
		return nil, err
	}

	enabled, err := colorMode(c.color)
	if err != nil {
		return nil, err
	}
	storage, err := fs.NewStorage(cfg.Root)
	if err != nil {
		return nil, err
	}
	journal := cfg.Batch.Journal
	if journal == "" {
		journal = fs.DefaultJournalPath(cfg.Root)
	}
	detector := chroma.NewDetector()

	app := &App{
		Out:       c.out,
		Err:       c.errOut,
		Printer:   color.NewPrinter(c.out, enabled, color.WithWordDiff(worddiff.NewDiffer())),
		Config:    cfg,
		Dir:       c.dir,
		Storage:   storage,
		Detector:  detector,
		Patcher:   gitdiff.NewPatcher(),
		Journal:   jsonl.NewJournal(journal),
		Extractor: markdown.NewExtractor(markdown.WithDiffTargets(gitdiff.Targets)),
	}
	if c.interactive {
		theme := lgtheme.DetectTheme(lg.DefaultRenderer())
		app.Reviewer = bubbletea.NewReviewer(nil, nil,
			bubbletea.WithTheme(theme),
			bubbletea.WithLanguageDetector(detector),
			bubbletea.WithTokenizer(chroma.NewTokenizer(chroma.StyleFromPalette(theme.Palette()))),
		)
	}
	return app, nil
}

// withCompiler adds the configured compiler, with results cached on disk.
func (c *cli) withCompiler(app *App) error {
	cc := app.Config.Compiler.Command
	if _, err := exec.LookPath(cc); err != nil {
		return fmt.Errorf("compiler %q not found: %w", cc, err)
	}
	checker := gcc.NewChecker(app.Config.Root, app.Detector,
		gcc.WithCompilers(cc, cxxFor(cc)),
		gcc.WithFlags(app.Config.Compiler.Args...),
	)
	app.Checkers = append(app.Checkers, fs.NewChecker(checker, app.Storage, fs.DefaultCacheDir()))
	return nil
}

// cxxFor returns the C++ driver paired with a C compiler.
func cxxFor(cc string) string {
	switch {
	case strings.HasSuffix(cc, "clang"):
		return cc + "++"
	case strings.HasSuffix(cc, "gcc"):
		return strings.TrimSuffix(cc, "gcc") + "g++"
	}
	return cc
}

// colorMode maps the --color flag to the printer setting; nil means detect.
func colorMode(mode string) (*bool, error) {
	on, off := true, false
	switch mode {
	case "auto", "":
		return nil, nil
	case "on", "always":
		return &on, nil
	case "off", "never":
		return &off, nil
	}
	return nil, fmt.Errorf("invalid --color %q: want auto, on or off", mode)
}
