package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/insky7/txcrimemap/internal/pipeline"
	"github.com/insky7/txcrimemap/internal/regionstore"
	"github.com/insky7/txcrimemap/internal/server"
	"github.com/insky7/txcrimemap/pkg/geocode"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the crime map API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// One shared AWS config; both clients are long-lived and safe for
		// concurrent use across requests.
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return eris.Wrap(err, "load aws config")
		}
		s3Client := s3.NewFromConfig(awsCfg)
		dynamoClient := dynamodb.NewFromConfig(awsCfg)

		geocoder := geocode.NewClient(cfg.Geocode.GoogleKey,
			geocode.WithRateLimit(cfg.Geocode.RateLimit),
		)
		regions := regionstore.New(dynamoClient, cfg.Store.Table, cfg.Store.Index,
			regionstore.WithFanOutLimit(cfg.Pipeline.FanOutLimit),
		)
		pipe := pipeline.New(geocoder, s3Client, regions, cfg.Blob.Bucket, cfg.Blob.NeighborKey)
		landing := server.NewLanding(s3Client, cfg.Blob.Bucket, cfg.Blob.LandingKey, cfg.Blob.LogoKey, cfg.Blob.AssetDir)

		srv := server.New(pipe, landing, time.Duration(cfg.Server.TimeoutSecs)*time.Second)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("region", cfg.AWS.Region))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
