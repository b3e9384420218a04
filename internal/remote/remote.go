package remote

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/goccy/go-json"

	"backstage/internal/config"
	"backstage/internal/models"
)

// Adapter is the best-effort cloud contract. Nothing in the game requires
// it; local persistence stays authoritative when any call fails.
type Adapter interface {
	IsAvailable() bool
	Push(saveID string, payload []byte, meta models.SlotMetadata) error
	Pull(saveID string) ([]byte, error)
	ListRemote() ([]models.SlotMetadata, error)
}

// S3Adapter stores save documents under {userID}/{saveID}.json with a
// sibling .meta.json the picker can list without downloading snapshots.
type S3Adapter struct {
	api    *s3.S3
	bucket string
	userID string // anonymous cloud identity
}

func NewS3Adapter(cfg *config.Config) *S3Adapter {
	s3Config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.Remote.KeyID, cfg.Remote.AppKey, ""),
		Endpoint:         aws.String(cfg.Remote.Endpoint),
		Region:           aws.String(cfg.Remote.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	sess := session.Must(session.NewSession(s3Config))
	return &S3Adapter{
		api:    s3.New(sess),
		bucket: cfg.Remote.Bucket,
		userID: cfg.Remote.UserID,
	}
}

func (a *S3Adapter) IsAvailable() bool {
	return a.api != nil && a.bucket != "" && a.userID != ""
}

func (a *S3Adapter) key(saveID, suffix string) string {
	return path.Join(a.userID, saveID+suffix)
}

func (a *S3Adapter) Push(saveID string, payload []byte, meta models.SlotMetadata) error {
	_, err := a.api.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(saveID, ".json")),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("remote push: %w", err)
	}

	metaBytes, err := json.Marshal(&meta)
	if err != nil {
		return err
	}
	_, err = a.api.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(saveID, ".meta.json")),
		Body:        bytes.NewReader(metaBytes),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("remote meta push: %w", err)
	}
	return nil
}

func (a *S3Adapter) Pull(saveID string) ([]byte, error) {
	out, err := a.api.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(saveID, ".json")),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, nil // no remote copy, not an error
		}
		return nil, fmt.Errorf("remote pull: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (a *S3Adapter) ListRemote() ([]models.SlotMetadata, error) {
	out, err := a.api.ListObjectsV2(&s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.userID + "/"),
	})
	if err != nil {
		return nil, fmt.Errorf("remote list: %w", err)
	}

	var metas []models.SlotMetadata
	for _, obj := range out.Contents {
		key := aws.StringValue(obj.Key)
		if !strings.HasSuffix(key, ".meta.json") {
			continue
		}
		got, err := a.api.GetObject(&s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			log.Printf("⚠️ Skipping unreadable remote meta %s: %v", key, err)
			continue
		}
		data, err := io.ReadAll(got.Body)
		got.Body.Close()
		if err != nil {
			continue
		}
		var meta models.SlotMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}
