package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sakif/recruiting-portal/internal/auth"
	"github.com/sakif/recruiting-portal/internal/config"
	"github.com/sakif/recruiting-portal/internal/metrics"
	"github.com/sakif/recruiting-portal/internal/mirror"
	"github.com/sakif/recruiting-portal/internal/objects"
	"github.com/sakif/recruiting-portal/internal/repository/kv"
	"github.com/sakif/recruiting-portal/internal/service"
	"github.com/sakif/recruiting-portal/internal/store"
	"github.com/sakif/recruiting-portal/internal/store/dynamo"
	"github.com/sakif/recruiting-portal/internal/store/sqlite"
)

// BuildOptions vary the wiring between entry points.
type BuildOptions struct {
	// InlineSync runs external sync inside the request instead of on the
	// background queue. Lambda freezes the process after the response, so
	// queued work would never run there.
	InlineSync bool
}

// Build opens every external resource cfg names and returns a ready Server.
//
// DEPENDENCY CHAIN:
//
//	store.Table (dynamo | sqlite) → kv.DB → Users / Config / Counters
//	aws.Config → objects.Store (S3)
//	AppSheet + Sheets + Dispatcher (Queue | Inline) → mirror.Syncer
//	everything above → services → New (router)
//
// On error, whatever was already opened is closed again.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Server, error) {
	var closers []func(context.Context) error
	fail := func(err error) (*Server, error) {
		for _, c := range closers {
			_ = c(ctx)
		}
		return nil, err
	}

	m := metrics.New()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	// === STORE ===
	var table store.Table
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		closers = append(closers, func(context.Context) error { return db.Close() })
		table = db
	default:
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.AWSEndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			}
		})
		table = dynamo.New(client, cfg.DynamoTable, cfg.DynamoEmailIndex)
	}
	db := kv.New(table)

	// === AUTH ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	if err != nil {
		return fail(fmt.Errorf("creating token service: %w", err))
	}
	var google auth.GoogleVerifier
	if cfg.GoogleClientID != "" {
		v, err := auth.NewGoogleVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			return fail(fmt.Errorf("creating Google verifier: %w", err))
		}
		google = v
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set, Google sign-in is disabled")
	}

	// === OBJECTS ===
	files := objects.NewFromConfig(awsCfg, objects.Config{
		Bucket:           cfg.S3Bucket,
		Region:           cfg.AWSRegion,
		CloudFrontDomain: cfg.CloudFrontDomain,
		UploadURLTTL:     cfg.UploadURLTTL,
	}, func(o *s3.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		}
	})
	if cfg.S3Bucket == "" {
		logger.Warn("S3_BUCKET not set, uploads are disabled")
	}

	// === MIRROR ===
	appSheetCfg := mirror.AppSheetConfig{
		AppID:   cfg.AppSheet.AppID,
		APIKey:  cfg.AppSheet.APIKey,
		Table:   cfg.AppSheet.Table,
		Timeout: cfg.AppSheet.Timeout,
	}
	rows := mirror.NewAppSheet(appSheetCfg, &http.Client{}, logger)

	var sheetsAPI mirror.SheetsAPI
	if cfg.Sheets.SpreadsheetID != "" {
		api, err := mirror.NewSheetsAPI(ctx, cfg.Sheets.ServiceAccountJSON, cfg.Sheets.CredentialsFile)
		if err != nil {
			// The portal works without the spreadsheet; appends are skipped.
			logger.Warn("sheets client unavailable", slog.String("error", err.Error()))
		} else {
			sheetsAPI = api
		}
	}
	sheets := mirror.NewSheets(sheetsAPI, mirror.SheetsConfig{
		SpreadsheetID:  cfg.Sheets.SpreadsheetID,
		ApplicationTab: cfg.Sheets.ApplicationTab,
		PNMTab:         cfg.Sheets.PNMTab,
		MetaTTL:        cfg.Sheets.MetaTTL,
	}, logger)

	var dispatch mirror.Dispatcher
	if opts.InlineSync {
		dispatch = mirror.Inline{Logger: logger, Recorder: m}
	} else {
		qcfg := mirror.DefaultQueueConfig()
		qcfg.Size = cfg.SyncQueueSize
		qcfg.Workers = cfg.SyncWorkers
		queue := mirror.NewQueue(qcfg, m, logger)
		queue.Start()
		// The queue drains before the database closes: prepend it.
		closers = append([]func(context.Context) error{queue.Stop}, closers...)
		dispatch = queue
	}
	syncer := mirror.NewSyncer(rows, sheets, db.Users(), db.Counters(), dispatch, logger)

	// === SERVICES ===
	users := db.Users()
	deps := Deps{
		Tokens:       tokens,
		Users:        users,
		Auth:         service.NewAuthService(users, tokens, auth.NewPasswordService(), google, syncer, m, logger),
		Profile:      service.NewProfileService(users, files, syncer, logger),
		Applications: service.NewApplicationService(users, files, syncer, m, cfg.PublicBaseURL, logger),
		Events:       service.NewEventService(users, db.Config(), syncer, m, logger),
		Admin:        service.NewAdminService(users, db.Config(), syncer, cfg.PublicBaseURL, logger),
		Feedback:     service.NewFeedbackService(users, logger),
		Conflicts:    service.NewConflictService(users, logger),
		Dev:          service.NewDevService(users, db.Config(), syncer, sheets, logger),
		Metrics:      m,
		Closers:      closers,
	}
	return New(cfg, deps, logger), nil
}
