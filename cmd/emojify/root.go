package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/cobra"

	"github.com/smegmarip/stash-emojify-plugin/internal/assets"
	"github.com/smegmarip/stash-emojify-plugin/internal/config"
	"github.com/smegmarip/stash-emojify-plugin/internal/detector"
	"github.com/smegmarip/stash-emojify-plugin/internal/emojify"
	"github.com/smegmarip/stash-emojify-plugin/internal/imageio"
	"github.com/smegmarip/stash-emojify-plugin/internal/log"
	"github.com/smegmarip/stash-emojify-plugin/internal/notify"
)

// Environment variables used as flag defaults
const (
	envDetector    = "EMOJIFY_DETECTOR"
	envServiceURL  = "EMOJIFY_SERVICE_URL"
	envAssetsDir   = "EMOJIFY_ASSETS_DIR"
	envCredentials = "GOOGLE_APPLICATION_CREDENTIALS"
	envLogLevel    = "EMOJIFY_LOG_LEVEL"
)

func newRootCmd() *cli.Command {
	cmd := &cli.Command{
		Use:           "emojify [flags] <image>...",
		Short:         "Cover faces in photos with matching emoji",
		Args:          cli.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runEmojify,
	}

	cmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file with defaults.")
	cmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error.")
	cmd.PersistentFlags().String("log-file", "", "Also write logs to this rotated file.")
	cmd.PersistentPreRunE = setup

	cmd.Flags().StringP("out-dir", "o", "", "Output directory (default: next to each input).")
	cmd.Flags().StringP("format", "f", "", "Output format: jpg or png (default: input format).")
	cmd.Flags().StringP("detector", "d", "", "Detector backend: service or cloudvision.")
	cmd.Flags().String("service-url", "", "Face classification service URL.")
	cmd.Flags().String("credentials", "", "Google Cloud credentials file for the cloudvision backend.")
	cmd.Flags().String("assets", "", "Directory of custom emoji PNGs.")
	cmd.Flags().Int("max-faces", detector.DefaultMaxFaces, "Maximum faces requested per photo.")
	cmd.Flags().Bool("notify", false, "Show desktop notifications.")

	cmd.AddCommand(newAssetsCmd())
	return cmd
}

// setup loads the dotenv file and installs the logrus log sink
func setup(cmd *cli.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	level, _ := cmd.Flags().GetString("log-level")
	if !cmd.Flags().Changed("log-level") {
		level = envOr(envLogLevel, level)
	}
	logFile, _ := cmd.Flags().GetString("log-file")

	log.SetSink(log.LogrusSink{Logger: log.NewLogrus(log.LogrusOptions{
		Level:  level,
		File:   logFile,
		Output: cmd.ErrOrStderr(),
	})})
	return nil
}

func runEmojify(cmd *cli.Command, args []string) error {
	cfg, err := cliConfig(cmd)
	if err != nil {
		return err
	}

	store := assets.NewStore(cfg.AssetsDir)
	if err := store.Preload(); err != nil {
		return err
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if desktop, _ := cmd.Flags().GetBool("notify"); desktop {
		notifier = notify.Multi{notifier, notify.DesktopNotifier{}}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := emojify.New(detector.NewFactory(cfg.DetectorConfig()), store, notifier)
	return emojifyAll(ctx, cmd, e, cfg, args)
}

func emojifyAll(ctx context.Context, cmd *cli.Command, e *emojify.Emojifier, cfg *config.PluginConfig, inputs []string) error {
	out := cmd.OutOrStdout()
	failed := 0

	for _, input := range inputs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		dst := imageio.OutputPath(input, cfg.OutputDir, cfg.OutputFormat)
		result, err := e.ProcessFile(ctx, input, dst)
		if err != nil {
			log.Errorf("%s: %v", input, err)
			failed++
			continue
		}

		switch {
		case result.Path != "":
			fmt.Fprintf(out, "%s -> %s (%d/%d faces)\n", input, result.Path, result.Applied(), len(result.Faces))
		case len(result.Faces) == 0:
			fmt.Fprintf(out, "%s: no faces detected\n", input)
		default:
			fmt.Fprintf(out, "%s: no emoji applied\n", input)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(inputs))
	}
	return nil
}

// cliConfig fills the shared configuration from flags and the environment
func cliConfig(cmd *cli.Command) (*config.PluginConfig, error) {
	cfg := config.Default()
	flags := cmd.Flags()

	cfg.OutputDir, _ = flags.GetString("out-dir")
	format, _ := flags.GetString("format")
	cfg.OutputFormat = strings.ToLower(format)
	cfg.MaxFaces, _ = flags.GetInt("max-faces")

	backend, _ := flags.GetString("detector")
	cfg.DetectorBackend = strings.ToLower(envOr(envDetector, cfg.DetectorBackend))
	if backend != "" {
		cfg.DetectorBackend = strings.ToLower(backend)
	}

	cfg.DetectorServiceURL, _ = flags.GetString("service-url")
	if cfg.DetectorServiceURL == "" {
		cfg.DetectorServiceURL = envOr(envServiceURL, "http://localhost:"+config.DefaultServicePort)
	}

	cfg.GoogleCredentialsFile, _ = flags.GetString("credentials")
	if cfg.GoogleCredentialsFile == "" {
		cfg.GoogleCredentialsFile = os.Getenv(envCredentials)
	}

	cfg.AssetsDir, _ = flags.GetString("assets")
	if cfg.AssetsDir == "" {
		cfg.AssetsDir = os.Getenv(envAssetsDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
