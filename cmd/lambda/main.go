// Package main runs the portal on AWS Lambda behind an API Gateway HTTP API.
//
// The router is the same one cmd/server serves; the chi adapter turns each
// API Gateway v2 event into an *http.Request. External sync runs inline
// because Lambda freezes the process as soon as the response is returned.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"

	"github.com/sakif/recruiting-portal/internal/config"
	"github.com/sakif/recruiting-portal/internal/server"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	logger    *slog.Logger
)

// handle serves one API Gateway v2 request through the router.
func handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	logger.Debug("lambda request",
		slog.String("method", req.RequestContext.HTTP.Method),
		slog.String("path", req.RequestContext.HTTP.Path),
		slog.String("request_id", req.RequestContext.RequestID),
	)
	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.Build(context.Background(), cfg, logger, server.BuildOptions{InlineSync: true})
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	mux, ok := srv.Router().(*chi.Mux)
	if !ok {
		logger.Error("router is not a chi mux")
		os.Exit(1)
	}
	chiLambda = chiadapter.NewV2(mux)
	lambda.Start(handle)
}
