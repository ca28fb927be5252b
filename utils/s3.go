package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appConfig "github.com/nimastyle/nima-backend/config"
)

var (
	S3Client      *s3.Client
	PresignClient *s3.PresignClient
)

// InitS3 initializes the S3 client
func InitS3() error {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(appConfig.AWSRegion),
	)
	if err != nil {
		return fmt.Errorf("unable to load SDK config, %v", err)
	}

	S3Client = s3.NewFromConfig(cfg)
	PresignClient = s3.NewPresignClient(S3Client)
	log.Println("S3 Client Initialized")
	return nil
}

// UploadFileToS3 uploads a file to S3 and returns the Object Key
func UploadFileToS3(ctx context.Context, file io.Reader, objectKey string, contentType string) (string, error) {
	if S3Client == nil {
		if err := InitS3(); err != nil {
			return "", err
		}
	}

	_, err := S3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(appConfig.AWSBucketName),
		Key:         aws.String(objectKey),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %v", err)
	}

	return objectKey, nil
}

// FetchFileFromS3 downloads an object into memory
func FetchFileFromS3(ctx context.Context, objectKey string) ([]byte, error) {
	if S3Client == nil {
		if err := InitS3(); err != nil {
			return nil, err
		}
	}

	out, err := S3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(appConfig.AWSBucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from S3: %v", objectKey, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// DeleteFileFromS3 removes an object
func DeleteFileFromS3(ctx context.Context, objectKey string) error {
	if S3Client == nil {
		if err := InitS3(); err != nil {
			return err
		}
	}

	_, err := S3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(appConfig.AWSBucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from S3: %v", objectKey, err)
	}
	return nil
}

// GetPresignedURL generates a presigned URL for an object
func GetPresignedURL(ctx context.Context, objectKey string) (string, error) {
	if PresignClient == nil {
		if err := InitS3(); err != nil {
			return "", err
		}
	}

	request, err := PresignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(appConfig.AWSBucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(1*time.Hour))
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %v", err)
	}

	return request.URL, nil
}

// S3Blobs adapts the S3 helpers onto the generation blob-store interface.
type S3Blobs struct {
	// Prefix namespaces stored renders, e.g. "generated_images".
	Prefix string
}

func (b *S3Blobs) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	objectKey := fmt.Sprintf("%s/render_%d.jpg", b.Prefix, time.Now().UnixNano())
	return UploadFileToS3(ctx, bytes.NewReader(data), objectKey, contentType)
}

func (b *S3Blobs) Fetch(ctx context.Context, key string) ([]byte, error) {
	return FetchFileFromS3(ctx, key)
}

func (b *S3Blobs) URL(ctx context.Context, key string) (string, error) {
	return GetPresignedURL(ctx, key)
}

func (b *S3Blobs) Delete(ctx context.Context, key string) error {
	return DeleteFileFromS3(ctx, key)
}
