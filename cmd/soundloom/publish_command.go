package main

import (
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"soundloom/internal/publish"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var (
		bucket      string
		prefix      string
		skipArchive bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the dist directory to an S3-compatible bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if bucket == "" {
				bucket = cfg.Publish.Bucket
			}
			if prefix == "" {
				prefix = cfg.Publish.Prefix
			}

			awsCfg, err := awsconfig.LoadDefaultConfig(cmd.Context(),
				awsconfig.WithRegion(cfg.Publish.Region))
			if err != nil {
				return fmt.Errorf("load AWS configuration: %w", err)
			}

			publisher, err := publish.New(s3.NewFromConfig(awsCfg), publish.Options{
				Bucket:      bucket,
				Prefix:      prefix,
				SkipArchive: skipArchive,
			}, logger)
			if err != nil {
				return err
			}

			result, err := publisher.Publish(cmd.Context(), cfg.Paths.DistDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d objects to s3://%s/%s\n",
				len(result.Uploaded), bucket, prefix)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Target bucket (defaults to the configured publish.bucket)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix (defaults to the configured publish.prefix)")
	cmd.Flags().BoolVar(&skipArchive, "skip-archive", false, "Upload only individual files, no zip bundle")
	return cmd
}
