package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	a "bitwise74/account-api/aws"
	"bitwise74/account-api/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// AvatarStore persists profile images. The "db" backend inlines the
// image into the user record as a base64 data URI, the "s3" backend
// uploads the object and stores its key instead.
type AvatarStore struct {
	Type          string
	S3            *a.S3Client
	CloudfrontURL string
}

func NewAvatarStore(c *config.Config, s3c *a.S3Client) *AvatarStore {
	return &AvatarStore{
		Type:          c.Storage.Type,
		S3:            s3c,
		CloudfrontURL: c.AWS.CloudfrontURL,
	}
}

// Store reads the temporary upload artifact at p and returns the
// representation to persist on the user record. The caller owns the
// artifact and its cleanup.
func (s *AvatarStore) Store(p, userID string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("failed to read upload artifact, %w", err)
	}

	mime := mimetype.Detect(data)

	if s.Type == "s3" {
		return s.storeS3(data, mime.String(), userID+mime.Extension())
	}

	return "data:" + mime.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (s *AvatarStore) storeS3(data []byte, contentType, key string) (string, error) {
	key = "avatar_" + key

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(time.Minute))
	defer cancel()

	now := time.Now()

	u := manager.NewUploader(s.S3.C)
	_, err := u.Upload(ctx, &s3.PutObjectInput{
		Bucket:       s.S3.Bucket,
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar to S3, %w", err)
	}

	zap.L().Debug("Avatar uploaded", zap.String("key", key), zap.Duration("took", time.Since(now)))

	return key, nil
}

// RedirectURL maps a stored S3 key to its public CDN location.
func (s *AvatarStore) RedirectURL(key string) string {
	return s.CloudfrontURL + "/" + key
}

// ParseDataURI splits a stored data URI back into content type and
// raw bytes so the avatar endpoint can serve it directly.
func ParseDataURI(v string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(v, "data:")
	if !ok {
		return "", nil, errors.New("not a data URI")
	}

	ct, b64, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, errors.New("malformed data URI")
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, err
	}

	return ct, data, nil
}
