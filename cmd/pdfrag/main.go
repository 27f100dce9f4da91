package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pdfrag/internal/config"
	"pdfrag/internal/logger"
	"pdfrag/internal/rag"
	"pdfrag/internal/registry"
	"pdfrag/internal/service"
	"pdfrag/internal/tui"
)

const usage = `Usage: pdfrag <command> [flags] [args]

Commands:
  build --name NAME FILE...   build an index from PDF, .txt or .md files (globs and directories accepted)
  list                        list indexes, newest first
  ask --index ID QUESTION     answer one question from an index
  chat [--index ID]           interactive chat

Common flags:
  --config PATH   YAML config (default ./config.yaml, then ~/.config/pdfrag/config.yaml)
  --api-key KEY   OpenAI API key (default from the environment)
  --store DIR     index store directory (overrides store_dir)
`

type commonFlags struct {
	config string
	apiKey string
	store  string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "Path to YAML config file")
	fs.StringVar(&c.apiKey, "api-key", "", "OpenAI API key")
	fs.StringVar(&c.store, "store", "", "Index store directory")
}

func main() {
	_ = godotenv.Load()
	log.SetFlags(0)
	log.SetPrefix("pdfrag: ")

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "build":
		err = runBuild(ctx, args)
	case "list":
		err = runList(args, os.Stdout)
	case "ask":
		err = runAsk(ctx, args)
	case "chat":
		err = runChat(ctx, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		stop()
		log.Fatal(service.Explain(err))
	}
}

// loadConfig resolves the config file and applies the --store override.
func loadConfig(c commonFlags) (*config.AppConfig, error) {
	var cfg *config.AppConfig
	var err error
	if c.config == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(c.config)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.store != "" {
		cfg.StoreDir = c.store
	}
	return cfg, nil
}

// setup loads the config and logger for a subcommand. quiet disables logging
// unless a log file is configured, so log lines do not corrupt the TUI.
func setup(c commonFlags, needGenerate, quiet bool) (*service.RAGService, *zap.Logger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	zl := zap.NewNop()
	if !quiet || cfg.Log.File != "" {
		if zl, err = logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
			return nil, nil, err
		}
	}
	svc, err := wiring{cfg: cfg, apiKey: c.apiKey, needGenerate: needGenerate, log: zl}.service()
	if err != nil {
		return nil, nil, err
	}
	return svc, zl, nil
}

func runBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var c commonFlags
	c.register(fs)
	name := fs.String("name", "", "Index name")
	_ = fs.Parse(args)
	if strings.TrimSpace(*name) == "" {
		return fmt.Errorf("--name is required")
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no input files; usage: pdfrag build --name NAME FILE...")
	}

	svc, zl, err := setup(c, false, false)
	if err != nil {
		return err
	}
	defer zl.Sync()

	meta, err := svc.IngestFiles(ctx, *name, fs.Args())
	if err != nil {
		return err
	}
	fmt.Printf("Built index %s (%q): %d documents, %d chunks, model %s\n",
		meta.ID, meta.Name, meta.DocCount, meta.ChunkCount, meta.EmbedModel)
	return nil
}

// runList only reads the registry, so it needs neither providers nor a key.
func runList(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var c commonFlags
	c.register(fs)
	_ = fs.Parse(args)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	indexes, err := registry.NewFileRegistry(cfg.StoreDir).List()
	if err != nil {
		return err
	}
	if len(indexes) == 0 {
		fmt.Fprintln(out, "No indexes yet. Build one with: pdfrag build --name NAME FILE...")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tDOCS\tCHUNKS\tMODEL")
	for _, m := range indexes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			m.ID, m.Name, m.CreatedAt.Local().Format("2006-01-02 15:04"), m.DocCount, m.ChunkCount, m.EmbedModel)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, m := range indexes {
		if m.Summary != "" {
			fmt.Fprintf(out, "\n%s: %s\n", m.ID, m.Summary)
		}
	}
	return nil
}

func runAsk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	var c commonFlags
	c.register(fs)
	id := fs.String("index", "", "Index id (see pdfrag list)")
	_ = fs.Parse(args)
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if *id == "" || question == "" {
		return fmt.Errorf("usage: pdfrag ask --index ID QUESTION")
	}

	svc, zl, err := setup(c, true, false)
	if err != nil {
		return err
	}
	defer zl.Sync()

	opened, err := svc.OpenIndex(*id)
	if err != nil {
		return err
	}
	ans, err := svc.Ask(ctx, opened, question)
	if err != nil {
		return err
	}
	fmt.Println(ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range rag.FormatSources(ans.Sources) {
			fmt.Println("- " + s)
		}
	}
	return nil
}

func runChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	var c commonFlags
	c.register(fs)
	id := fs.String("index", "", "Open this index directly")
	_ = fs.Parse(args)

	svc, zl, err := setup(c, true, true)
	if err != nil {
		return err
	}
	defer zl.Sync()

	m := tui.New(ctx, svc, *id)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return err
	}
	return nil
}
