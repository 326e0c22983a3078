package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"avatar-uploader/internal/config"
	"avatar-uploader/internal/mediatype"
	"avatar-uploader/internal/storage"
	"avatar-uploader/internal/widget"
)

var errCancelled = errors.New("upload cancelled")

type uploadOptions struct {
	bucket      string
	region      string
	endpoint    string
	profile     string
	keyPrefix   string
	contentType string
	verbose     bool
}

func uploadCmd() *cobra.Command {
	var opts uploadOptions

	cmd := &cobra.Command{
		Use:   "upload <image>",
		Short: "Upload an image and print its location",
		Long: `Upload a JPEG, PNG or GIF image to the configured bucket.

The object key is "<timestamp>-<file name>". Press Ctrl+C to cancel a
running upload. Settings default to the AVATAR_* environment variables.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, opts)
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logrus.New()
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetLevel(logrus.WarnLevel)
			if opts.verbose {
				logger.SetLevel(logrus.DebugLevel)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := storage.NewS3Client(ctx, storage.ClientConfig{
				Region:          cfg.Storage.Region,
				Endpoint:        cfg.Storage.Endpoint,
				Profile:         cfg.AWS.Profile,
				AccessKeyID:     cfg.Storage.AccessKeyID,
				SecretAccessKey: cfg.Storage.SecretAccessKey,
			})
			if err != nil {
				return err
			}
			svc := storage.NewS3Service(client, storage.WithProgressInterval(cfg.Upload.ProgressInterval))

			file, err := readImage(args[0], opts.contentType, cfg.Upload.MaxBytes)
			if err != nil {
				return err
			}

			location, err := runUpload(ctx, cmd.OutOrStdout(), svc, widget.Config{
				Bucket: cfg.Storage.Bucket,
				Keys:   widget.NewKeyGenerator(cfg.Storage.KeyPrefix),
				Logger: logger,
			}, file)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), location)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.bucket, "bucket", "", "destination bucket (AVATAR_STORAGE_BUCKET)")
	cmd.Flags().StringVar(&opts.region, "region", "", "bucket region (AVATAR_STORAGE_REGION)")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "S3 compatible endpoint (AVATAR_STORAGE_ENDPOINT)")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "shared AWS profile (AVATAR_AWS_PROFILE)")
	cmd.Flags().StringVar(&opts.keyPrefix, "key-prefix", "", "key prefix (AVATAR_STORAGE_KEYPREFIX)")
	cmd.Flags().StringVar(&opts.contentType, "content-type", "", "declared content type, sniffed when empty")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log widget activity")
	return cmd
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, opts uploadOptions) {
	flags := cmd.Flags()
	if flags.Changed("bucket") {
		cfg.Storage.Bucket = opts.bucket
	}
	if flags.Changed("region") {
		cfg.Storage.Region = opts.region
	}
	if flags.Changed("endpoint") {
		cfg.Storage.Endpoint = opts.endpoint
	}
	if flags.Changed("profile") {
		cfg.AWS.Profile = opts.profile
	}
	if flags.Changed("key-prefix") {
		cfg.Storage.KeyPrefix = opts.keyPrefix
	}
}

func readImage(path, contentType string, maxBytes int64) (widget.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return widget.File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return widget.File{}, fmt.Errorf("%s is a directory", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return widget.File{}, fmt.Errorf("%s exceeds %d bytes", path, maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return widget.File{}, fmt.Errorf("read %s: %w", path, err)
	}
	if contentType == "" {
		contentType = mediatype.Detect(data)
	}
	return widget.File{
		Name:        filepath.Base(path),
		ContentType: strings.ToLower(contentType),
		Data:        data,
	}, nil
}

// runUpload drives one widget through select, upload and completion while
// rendering its progress to out. Cancelling ctx cancels the upload.
func runUpload(ctx context.Context, out io.Writer, up widget.Uploader, cfg widget.Config, file widget.File) (string, error) {
	w := widget.New(context.Background(), up, cfg)
	defer w.Close()

	if err := w.SelectFile(file); err != nil {
		return "", err
	}

	updates, unsubscribe := w.Subscribe()
	defer unsubscribe()
	<-updates

	if err := w.StartUpload(); err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			w.Cancel()
			fmt.Fprintln(out)
			return "", errCancelled
		case s, open := <-updates:
			if !open {
				return "", widget.ErrClosed
			}
			switch s.Phase {
			case widget.PhaseUploading:
				renderProgress(out, s.Progress)
			case widget.PhaseCompleted:
				renderProgress(out, s.Progress)
				fmt.Fprintln(out)
				return s.Location, nil
			case widget.PhaseFailed:
				fmt.Fprintln(out)
				return "", s.Err
			}
		}
	}
}

const barWidth = 30

func renderProgress(out io.Writer, percent int) {
	filled := percent * barWidth / 100
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	fmt.Fprintf(out, "\r[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled), percent)
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Report whether a file would be accepted for upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentType, err := mediatype.DetectFile(args[0])
			if err != nil {
				return err
			}
			if !widget.AllowedType(contentType) {
				return fmt.Errorf("%s (%s): %s", args[0], contentType, widget.RejectedTypeMessage)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s ok\n", args[0], contentType)
			return nil
		},
	}
}
