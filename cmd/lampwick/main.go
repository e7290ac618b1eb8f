package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/lampwick/pkg/actions"
	"github.com/go-go-golems/lampwick/pkg/chat"
	"github.com/go-go-golems/lampwick/pkg/classify"
	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/go-go-golems/lampwick/pkg/events"
	"github.com/go-go-golems/lampwick/pkg/generation/openai"
	"github.com/go-go-golems/lampwick/pkg/i18n"
	"github.com/go-go-golems/lampwick/pkg/persist"
	"github.com/go-go-golems/lampwick/pkg/strategy"
	"github.com/go-go-golems/lampwick/pkg/tools"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lampwick",
		Short: "lampwick - conversational assistant with staged analysis and tool dispatch",
		Long: `Lampwick is a line-oriented chat client: every request is classified,
planned against the registered tools, and answered with staged progress
narration. Conversations, memory facts and accounts persist in a local
state file; type /help inside the session for the command list.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
		RunE:              runChat,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ~/.lampwick/config.yaml)")
	flags.String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	flags.String("state", "", "state file (default ~/.lampwick/state.json)")
	flags.String("locale", "en", "interface locale")
	flags.String("api-key", "", "API key for the generation backend")
	flags.String("base-url", "", "OpenAI-compatible endpoint override")
	flags.String("model-capable", "gpt-4o", "backend model for the capable tier")
	flags.String("model-fast", "gpt-4o-mini", "backend model for the fast tier")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lampwick v%s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	viper.SetEnvPrefix("LAMPWICK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	// The backend key is commonly exported under its upstream name.
	_ = viper.BindEnv("api-key", "LAMPWICK_API_KEY", "OPENAI_API_KEY")

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".lampwick"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
	zerolog.SetGlobalLevel(level)
	return nil
}

func statePath() (string, error) {
	if p := viper.GetString("state"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".lampwick", "state.json"), nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	apiKey := viper.GetString("api-key")
	if apiKey == "" {
		return fmt.Errorf("no API key configured, set --api-key or OPENAI_API_KEY")
	}

	path, err := statePath()
	if err != nil {
		return err
	}
	storage, err := persist.NewFileStorage(path)
	if err != nil {
		return err
	}

	tr := i18n.NewCatalog(viper.GetString("locale"))
	persister := persist.NewPersister(storage)
	accounts := persist.NewAccounts(storage, persister, tr)
	accounts.Restore()

	var svcOpts []openai.Option
	if baseURL := viper.GetString("base-url"); baseURL != "" {
		svcOpts = append(svcOpts, openai.WithBaseURL(baseURL))
	}
	svc := openai.NewService(apiKey, svcOpts...)
	images := openai.NewImageService(apiKey, svcOpts...)

	tiers := strategy.TierModels{
		Capable: viper.GetString("model-capable"),
		Fast:    viper.GetString("model-fast"),
	}

	store := conversation.NewStore()
	memory := conversation.NewMemoryStore()

	registry := tools.NewRegistry()
	ui := &consoleUI{}
	for _, def := range []tools.Definition{
		tools.NewWeatherTool(tools.NewMockWeatherService()),
		tools.NewControlTool(ui),
		tools.NewOpenWebsiteTool(&consoleOpener{}),
		tools.NewYouTubeTool(tools.NewMockVideoSearcher()),
	} {
		if err := registry.Register(def); err != nil {
			return err
		}
	}

	classifier := classify.New(svc, tr, tiers.Fast)
	planner := strategy.New(tr, tiers, registry.Declarations())
	dispatcher := tools.NewDispatcher(registry, svc, tr)
	runner := actions.NewRunner(store, tr, images,
		actions.WithToast(func(level, message string) {
			fmt.Printf("  [%s] %s\n", level, message)
		}),
	)

	router, err := events.NewEventRouter()
	if err != nil {
		return err
	}
	defer func() {
		if err := router.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close event router")
		}
	}()

	publisher := events.NewPublisherManager()
	publisher.SubscribePublisher(chatTopic, router.Publisher)

	ctrl := chat.NewController(store, memory, classifier, planner, dispatcher, runner, svc, tr,
		chat.WithPublisher(publisher),
		chat.WithUserName(func() string {
			if u := accounts.Current(); u != nil {
				return u.Name
			}
			return ""
		}),
	)

	app := newApp(ctrl, store, memory, accounts, persister, tr)
	app.reload()
	store.SetChangeHook(app.save)
	memory.SetChangeHook(app.save)
	router.AddHandler("cli-progress", chatTopic, app.renderEvent)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return router.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		<-router.Running()
		return app.loop(ctx)
	})
	err = g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}
