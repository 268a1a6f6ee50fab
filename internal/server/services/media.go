package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/fittrack/internal/common"
	"github.com/dmitrijs2005/fittrack/internal/logging"
	"github.com/dmitrijs2005/fittrack/internal/server/auth"
	sc "github.com/dmitrijs2005/fittrack/internal/server/config"
	"github.com/dmitrijs2005/fittrack/internal/server/models"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/repomanager"

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

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// MediaItem is one entry of a media listing. URL embeds a media access
// token and is only usable until that token expires.
type MediaItem struct {
	ID          int64
	ContentType string
	URL         string
	CreatedAt   time.Time
}

type MediaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	tokens      *auth.MediaTokens
	timeout     time.Duration
	logger      logging.Logger
}

func NewMediaService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, tokens *auth.MediaTokens, l logging.Logger) *MediaService {
	timeout := cfg.DatabaseTimeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}

	return &MediaService{
		db:          db,
		repomanager: m,
		config:      cfg,
		tokens:      tokens,
		timeout:     timeout,
		logger:      l.With("module", "media"),
	}
}

// MediaPath is the fetch path for a media item carrying token.
func MediaPath(id int64, token string) string {
	q := url.Values{common.MediaTokenQueryParam: []string{token}}
	return "/media/" + strconv.FormatInt(id, 10) + "?" + q.Encode()
}

// List returns the user's media with fetch URLs bound to a freshly minted
// media access token. Token and URLs expire together.
func (s *MediaService) List(ctx context.Context, userID int64) ([]MediaItem, time.Time, error) {
	items, err := s.listByUser(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "list media failed", "user_id", userID, "error", err.Error())
		return nil, time.Time{}, common.ErrorInternal
	}

	token, exp, err := s.tokens.Issue(userID)
	if err != nil {
		s.logger.Error(ctx, "issue media token failed", "error", err.Error())
		return nil, time.Time{}, common.ErrorInternal
	}

	out := make([]MediaItem, 0, len(items))
	for _, m := range items {
		out = append(out, MediaItem{
			ID:          m.ID,
			ContentType: m.ContentType,
			URL:         MediaPath(m.ID, token),
			CreatedAt:   m.CreatedAt,
		})
	}
	return out, exp, nil
}

// Open authorizes a fetch of mediaID with a media access token and returns
// a presigned object storage URL. A missing item and an item owned by
// someone else are both ErrorNotFound.
func (s *MediaService) Open(ctx context.Context, token string, mediaID int64) (string, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return "", common.ErrorUnauthorized
	}

	m, err := s.getByID(ctx, mediaID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		s.logger.Error(ctx, "get media failed", "media_id", mediaID, "error", err.Error())
		return "", common.ErrorInternal
	}

	if m.UserID != userID {
		s.logger.Warn(ctx, "media owner mismatch", "media_id", mediaID, "user_id", userID)
		return "", common.ErrorNotFound
	}

	u, err := s.presignedGetURL(ctx, m.StorageKey)
	if err != nil {
		s.logger.Error(ctx, "presign media url failed", "media_id", mediaID, "error", err.Error())
		return "", common.ErrorInternal
	}
	return u, nil
}

func (s *MediaService) listByUser(ctx context.Context, userID int64) ([]*models.Media, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repomanager.Media(s.db).ListByUser(ctx, userID)
}

func (s *MediaService) getByID(ctx context.Context, mediaID int64) (*models.Media, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repomanager.Media(s.db).GetByID(ctx, mediaID)
}

func (s *MediaService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

func (s *MediaService) presignedGetURL(ctx context.Context, key string) (string, error) {
	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.MediaURLTTL))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
