package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/quilltask/quill/internal/config"
	"github.com/quilltask/quill/internal/session"
	"github.com/quilltask/quill/internal/storage"
	"github.com/quilltask/quill/internal/taskstore"
	"github.com/quilltask/quill/internal/tui"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Quill - git-context-aware task lists in your terminal",
	Long: `Quill keeps a separate task list for every (organization, repository,
branch) you work in, derived automatically from the enclosing git
repository. Running quill with no arguments opens the interactive TUI.`,
	RunE: runTUI,
}

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the quill version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("quill " + Version)
	},
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.quill/config.json)")
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	log.SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// openBackend loads the configuration and opens the configured backend.
// A failed remote connection falls back to the default local backend for
// the session; the persisted configuration is left untouched.
func openBackend(ctx context.Context) (storage.Backend, config.Config, string, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, config.Config{}, "", "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, config.Config{}, "", "", err
	}

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		if !errors.Is(err, storage.ErrConnection) {
			return nil, config.Config{}, "", "", err
		}
		notice := fmt.Sprintf("%v; using local storage for this session", err)
		fallback := config.Default()
		backend, err = storage.Open(ctx, fallback)
		if err != nil {
			return nil, config.Config{}, "", "", err
		}
		return backend, fallback, path, notice, nil
	}
	return backend, cfg, path, "", nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	backend, cfg, path, notice, err := openBackend(ctx)
	if err != nil {
		// The storage root being unusable is the one fatal category.
		log.Fatalf("quill: %v", err)
	}
	defer backend.Close()

	store := taskstore.New(backend)
	ctrl := session.New(store, cfg, func(ctx context.Context, cfg config.Config) (storage.Backend, error) {
		return storage.Open(ctx, cfg)
	})
	if notice != "" {
		ctrl.Notify(session.LevelError, notice)
	} else {
		ctrl.Notify(session.LevelSuccess, "Connected to "+backend.Name()+" storage")
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	ctrl.RefreshContext(ctx, wd)

	app := tui.New(ctrl, wd, path)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
