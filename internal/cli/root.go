package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	envPrefix  = "AUTOBUILD"
	configName = "autobuild"
)

type RootConfig struct {
	ConfigFile   string
	LogLevel     string
	StoreBackend string
	Repo         string
	QueueURL     string
}

func Execute() {
	root := newRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	cmd := &cobra.Command{
		Use:          "autobuild",
		Short:        "Build queued packages and publish them to the staging store",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			logger := setupLogging(viper.GetString("log_level"))
			cmd.SetContext(logger.WithContext(cmd.Context()))
			return nil
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	flags.StringVar(&cfg.StoreBackend, "store-backend", "github", "Artifact store backend (github or s3)")
	flags.StringVar(&cfg.Repo, "repo", "", "GitHub repository holding the staging releases")
	flags.StringVar(&cfg.QueueURL, "queue-url", "", "Build queue URL")
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("store_backend", flags.Lookup("store-backend"))
	_ = viper.BindPFlag("repo", flags.Lookup("repo"))
	_ = viper.BindPFlag("queue_url", flags.Lookup("queue-url"))

	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newShowAssetsCommand())
	cmd.AddCommand(newFetchAssetsCommand())
	cmd.AddCommand(newTriggerCommand())
	cmd.AddCommand(newCleanAssetsCommand())
	return cmd
}

func initConfig(configFile string) error {
	// A missing .env file is normal; credentials may come from the
	// environment directly.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	setConfigDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(filepath.Join(xdg.ConfigHome, configName))
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to read config file").
			WithCause(err)
	}
	return nil
}

func setupLogging(level string) zerolog.Logger {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return log.Logger
}

func exitCodeForError(err error) int {
	code := errbuilder.CodeOf(err)
	message := errorMessage(err)
	switch code {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodePermissionDenied:
		return 3
	case errbuilder.CodeFailedPrecondition:
		if strings.HasPrefix(message, "unresolved dependency") {
			return 3
		}
		return 4
	case errbuilder.CodeNotFound, errbuilder.CodeInternal:
		return 5
	default:
		return 1
	}
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
