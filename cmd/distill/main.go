// cmd/distill/main.go
//
// Entry point for distill. Run with no arguments to open the TUI over the
// library in the current directory; run `distill add <file>` to extract a
// document into the library first.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/kwren/distill/internal/config"
	"github.com/kwren/distill/internal/extract"
	"github.com/kwren/distill/internal/logbook"
	"github.com/kwren/distill/internal/store"
	"github.com/kwren/distill/internal/tui"
)

func main() {
	// Credentials come from the environment; a .env next to the working
	// directory is a convenience, not a requirement.
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		fail("resolve working directory: %v", err)
	}
	if err := config.Init(cwd); err != nil {
		fail("initialize %s: %v", config.DistillDir, err)
	}
	cfg, err := config.New(cwd)
	if err != nil {
		fail("load configuration: %v", err)
	}
	st, err := store.New(store.NewRepository(cfg.LibraryDir))
	if err != nil {
		fail("open library: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "add" {
		runAdd(cfg, st, os.Args[2:])
		return
	}
	runTUI(cfg, st)
}

func runAdd(cfg *config.Config, st *store.Store, args []string) {
	flags := flag.NewFlagSet("add", flag.ExitOnError)
	title := flags.String("title", "", "display title (defaults to the file name)")
	author := flags.String("author", "", "display author")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: distill add [-title T] [-author A] <file>")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		os.Exit(2)
	}
	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}
	path := flags.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		fail("read %s: %v", path, err)
	}
	text, err := extract.Text(data, path)
	if err != nil {
		fail("extract %s: %v", path, err)
	}
	docTitle := strings.TrimSpace(*title)
	if docTitle == "" {
		base := filepath.Base(path)
		docTitle = strings.TrimSuffix(base, filepath.Ext(base))
	}
	doc, err := st.CreateDocument(docTitle, *author, text, defaultRunConfig(cfg))
	if err != nil {
		fail("add document: %v", err)
	}
	fmt.Printf("Added %q (%d characters extracted)\nRun distill to start the distillation.\n", doc.Title, len(text))
}

func runTUI(cfg *config.Config, st *store.Store) {
	lb, err := logbook.New(filepath.Join(cfg.LogDir, "run.log"))
	if err != nil {
		fail("open logbook: %v", err)
	}
	app, err := tui.NewApp(cfg, st, lb)
	if err != nil {
		fail("start: %v", err)
	}
	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fail("run TUI: %v", err)
	}
}

func defaultRunConfig(cfg *config.Config) store.RunConfig {
	defaults := cfg.Settings.Defaults
	return store.RunConfig{
		Provider:     defaults.Provider,
		Model:        defaults.Model,
		SystemPrompt: defaults.SystemPrompt,
		StopToken:    defaults.StopToken,
		MaxSections:  defaults.MaxSections,
		AutoAdvance:  defaults.AutoAdvance,
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "distill: "+format+"\n", args...)
	os.Exit(1)
}
