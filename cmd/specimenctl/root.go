package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specimentrack/internal/blob"
	"specimentrack/internal/config"
	"specimentrack/internal/core"
	"specimentrack/internal/idcodec"
	"specimentrack/internal/logging"
	"specimentrack/pkg/domain"
)

// app holds the resources shared by every subcommand for one invocation.
type app struct {
	out      io.Writer
	envFiles []string

	conf    *config.GlobalConfig
	logger  *zap.Logger
	codec   *idcodec.Codec
	metrics *core.PrometheusMetricsRecorder
	svc     *core.Service
	closers []func() error
}

func run(ctx context.Context, args []string, out io.Writer) error {
	a := &app{out: out}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	defer func() { _ = a.close() }()
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:                "specimenctl",
		Short:              "specimenctl",
		Long:               "Manage projects, specimens and their lineage",
		SilenceUsage:       true,
		PersistentPreRunE:  a.initGlobalResource,
		PersistentPostRunE: a.cleanGlobalResource,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "env files to load before reading the environment (default .env)")
	root.AddCommand(a.projectCommand())
	root.AddCommand(a.specimenCommand())
	root.AddCommand(a.lineageCommand())
	root.AddCommand(a.exportCommand())
	return root
}

func (a *app) initGlobalResource(cmd *cobra.Command, _ []string) error {
	conf, err := config.Load(a.envFiles...)
	if err != nil {
		return err
	}
	a.conf = conf

	logger, closeLog, err := logging.New(logging.Config{Path: conf.Log.LogPath, Level: conf.Log.LogLevel})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger
	a.closers = append(a.closers, closeLog)

	codec, err := idcodec.New(conf.Codec.Secret)
	if err != nil {
		return fmt.Errorf("init id codec: %w", err)
	}
	a.codec = codec

	ctx := cmd.Context()
	store, err := core.OpenPersistentStore(ctx, core.StorageOptions{
		Driver:      core.StorageDriver(conf.Storage.Driver),
		SQLitePath:  conf.Storage.SQLitePath,
		PostgresDSN: conf.Storage.PostgresDSN,
	}, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, closer.Close)
	}

	blobs, err := blob.Open(ctx, blob.Options{
		Driver: blob.Driver(conf.Blob.Driver),
		FSRoot: conf.Blob.FSRoot,
		S3: blob.S3Options{
			Bucket:          conf.Blob.S3Bucket,
			Region:          conf.Blob.S3Region,
			Endpoint:        conf.Blob.S3Endpoint,
			PathStyle:       conf.Blob.S3PathStyle,
			AccessKeyID:     conf.Blob.S3AccessKeyID,
			SecretAccessKey: conf.Blob.S3SecretAccessKey,
		},
	})
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	metrics, err := core.NewPrometheusMetricsRecorder(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	a.metrics = metrics

	vocabulary := domain.DefaultVocabulary()
	vocabulary.StrictTypes = conf.Rules.StrictTypes

	a.svc = core.NewService(store, codec,
		core.WithLogger(logging.NewServiceLogger(logger)),
		core.WithAuditRecorder(logging.NewAuditLogger(logger)),
		core.WithMetricsRecorder(metrics),
		core.WithVocabulary(vocabulary),
		core.WithAccessChecker(core.AdminAccess{}),
		core.WithBlobStore(blobs),
	)
	logger.Debug("resources initialized",
		zap.String("storage", conf.Storage.Driver),
		zap.String("blob", conf.Blob.Driver),
		zap.String("command", cmd.CommandPath()))
	return nil
}

func (a *app) cleanGlobalResource(_ *cobra.Command, _ []string) error {
	var errs []error
	if a.metrics != nil && a.conf != nil && a.conf.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.conf.Metrics.Textfile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	errs = append(errs, a.close())
	return errors.Join(errs...)
}

// close releases resources in reverse order of acquisition. It is safe to call twice.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sampleData(set map[string]string) map[string]any {
	if len(set) == 0 {
		return nil
	}
	out := make(map[string]any, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out
}
