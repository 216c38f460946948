package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/wxcounter/internal/common"
	"github.com/dmitrijs2005/wxcounter/internal/dbx"
	sc "github.com/dmitrijs2005/wxcounter/internal/server/config"
	"github.com/dmitrijs2005/wxcounter/internal/server/models"
	"github.com/dmitrijs2005/wxcounter/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	now = time.Now
)

// CounterSnapshot is one counter with its full history as written to an export.
type CounterSnapshot struct {
	*models.Counter
	Records []*models.CounterRecord `json:"records"`
}

// ExportDocument is the JSON body uploaded by ExportService.
type ExportDocument struct {
	OwnerID    int64              `json:"owner_id"`
	ExportedAt time.Time          `json:"exported_at"`
	Counters   []*CounterSnapshot `json:"counters"`
}

// ExportService uploads a snapshot of an owner's counters to object storage
// and hands back a time-limited download URL.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	observer    LedgerObserver
}

func NewExportService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, o LedgerObserver) *ExportService {
	if o == nil {
		o = nopObserver{}
	}
	return &ExportService{db: db, repomanager: m, config: cfg, observer: o}
}

// ExportKey builds the object key for an export taken at t.
func ExportKey(userID int64, t time.Time) string {
	return fmt.Sprintf("users/%d/exports/%04d/%02d/%02d/%v.json", userID, t.Year(), int(t.Month()), t.Day(), uuid.New())
}

func (s *ExportService) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Snapshot reads the owner's counters and their records in one read-only
// transaction so values and histories agree.
func (s *ExportService) Snapshot(ctx context.Context, ownerID int64) (*ExportDocument, error) {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

	return dbx.WithTxResult(ctx, s.db, opts, func(ctx context.Context, tx dbx.DBTX) (*ExportDocument, error) {
		list, err := s.repomanager.Counters(tx).ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		doc := &ExportDocument{OwnerID: ownerID, ExportedAt: now().UTC(), Counters: make([]*CounterSnapshot, 0, len(list))}
		records := s.repomanager.Records(tx)
		for _, c := range list {
			recs, err := records.ListByCounter(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			doc.Counters = append(doc.Counters, &CounterSnapshot{Counter: c, Records: recs})
		}
		return doc, nil
	})
}

// Export uploads the owner's snapshot and returns its key and a presigned
// GET URL. Fails with common.ErrExportDisabled when no bucket is configured.
func (s *ExportService) Export(ctx context.Context, ownerID int64) (out *models.CounterExport, err error) {
	defer func(start time.Time) { s.observer.ObserveLedgerOp(OpExport, err, time.Since(start)) }(time.Now())

	if !s.config.ExportsEnabled() {
		return nil, common.ErrExportDisabled
	}

	doc, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error reading counters: %w", err)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("error encoding export: %w", err)
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := ExportKey(ownerID, doc.ExportedAt)

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return nil, fmt.Errorf("error uploading export: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.ExportURLValidity))
	if err != nil {
		return nil, fmt.Errorf("error presigning export: %w", err)
	}

	return &models.CounterExport{Key: key, URL: req.URL}, nil
}
