// Package objects stores uploaded files (headshots, resumes) in S3.
//
// Two upload paths exist:
//   - Presigned PUT: the browser asks for a short-lived signed URL and
//     uploads the image straight to S3; the portal never sees the bytes.
//   - Server-side PUT: application submission carries the files as base64
//     data URLs in the JSON body; the portal decodes and writes them.
package objects

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// ErrNotConfigured is returned when no bucket is set.
var ErrNotConfigured = errors.New("objects: S3 bucket not configured")

// Putter is the part of *s3.Client used for server-side writes.
type Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner is the part of *s3.PresignClient used for browser uploads.
type Presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config names the bucket and how objects are addressed publicly.
type Config struct {
	Bucket           string
	Region           string
	CloudFrontDomain string        // optional; when set, URLFor uses it
	UploadURLTTL     time.Duration // presigned URL lifetime
}

// Store writes objects and builds their URLs.
type Store struct {
	putter    Putter
	presigner Presigner
	cfg       Config
	now       func() time.Time
	newID     func() string
}

// New returns a Store. ttl defaults to 60s.
func New(putter Putter, presigner Presigner, cfg Config) *Store {
	if cfg.UploadURLTTL <= 0 {
		cfg.UploadURLTTL = 60 * time.Second
	}
	return &Store{
		putter:    putter,
		presigner: presigner,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// NewFromConfig wires a Store to a real S3 client. optFns are passed to the
// client, e.g. to point it at a local endpoint.
func NewFromConfig(awsCfg aws.Config, cfg Config, optFns ...func(*s3.Options)) *Store {
	client := s3.NewFromConfig(awsCfg, optFns...)
	return New(client, s3.NewPresignClient(client), cfg)
}

// PresignPut returns a URL the browser can PUT contentType bytes to.
//
// No ACL is set: the bucket has ACLs disabled and serves objects through a
// bucket policy / CloudFront instead.
func (s *Store) PresignPut(ctx context.Context, key, contentType string) (string, error) {
	if s.cfg.Bucket == "" {
		return "", ErrNotConfigured
	}
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.cfg.UploadURLTTL))
	if err != nil {
		return "", fmt.Errorf("objects: presigning %s: %w", key, err)
	}
	return req.URL, nil
}

// Put writes body under key, served inline so browsers display PDFs and
// images instead of downloading them.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if s.cfg.Bucket == "" {
		return ErrNotConfigured
	}
	_, err := s.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.cfg.Bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(body),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String("inline"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("objects: putting %s: %s: %w", key, apiErr.ErrorCode(), err)
		}
		return fmt.Errorf("objects: putting %s: %w", key, err)
	}
	return nil
}

// URLFor is the public URL of key: the CloudFront domain when configured,
// otherwise the bucket's virtual-hosted S3 URL.
func (s *Store) URLFor(key string) string {
	if s.cfg.CloudFrontDomain != "" {
		return "https://" + s.cfg.CloudFrontDomain + "/" + key
	}
	return s.S3URL(key)
}

// S3URL is the bucket's virtual-hosted URL for key, bypassing CloudFront.
func (s *Store) S3URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

func (s *Store) stamp() string {
	return strconv.FormatInt(s.now().UnixMilli(), 10)
}

// HeadshotKey names a public headshot uploaded before signup, when there is
// no user id yet.
func (s *Store) HeadshotKey(contentType string) string {
	return "headshots/" + s.newID() + "-" + s.stamp() + "." + ImageExt(contentType)
}

// InternalHeadshotKey names an onboarding headshot.
func (s *Store) InternalHeadshotKey(userID, ext string) string {
	return "internal-headshots/" + userID + "-" + s.stamp() + "." + ext
}

// ResumeKey names a resume too large to keep inline.
func (s *Store) ResumeKey(userID, ext string) string {
	return "resumes/" + userID + "-" + s.stamp() + "." + ext
}

// imageExts maps the image types browsers upload to a fixed extension.
var imageExts = map[string]string{
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/pjpeg":   "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/heic":    "heic",
	"image/heif":    "heif",
	"image/avif":    "avif",
	"image/bmp":     "bmp",
	"image/tiff":    "tiff",
	"image/svg+xml": "svg",
}

// ImageExt maps an image content type to a file extension
// ("image/png" → "png"). Parameters are ignored; unknown types get "jpg".
func ImageExt(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	if ext, ok := imageExts[strings.ToLower(strings.TrimSpace(mediaType))]; ok {
		return ext
	}
	return "jpg"
}
