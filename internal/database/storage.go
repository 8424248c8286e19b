package database

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/lsampedro/factumattic-console/internal/config"
)

// FileStorage representa el cliente del bucket donde viven los documentos
// fuente de las facturas (PDF o imagen). Este servicio solo lee: los
// documentos los sube el pipeline de extracción, aguas arriba.
type FileStorage struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	config        *config.StorageConfig
	logger        *logrus.Logger
	bucket        string
}

// NewFileStorage crea una nueva instancia del cliente de almacenamiento
func NewFileStorage(cfg *config.StorageConfig, logger *logrus.Logger) (*FileStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			},
		}),
	}

	// Resolver de endpoint personalizado para almacenes compatibles con S3
	if cfg.Endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				SigningRegion:     cfg.Region,
				HostnameImmutable: true,
			}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(customResolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	})

	return &FileStorage{
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		config:        cfg,
		logger:        logger,
		bucket:        cfg.Bucket,
	}, nil
}

// HealthCheck verifica la conexión al bucket
func (s *FileStorage) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("error checking storage connection: %w", err)
	}

	return nil
}

// PresignedURL retorna una URL firmada temporal para descargar el documento
func (s *FileStorage) PresignedURL(ctx context.Context, fileID string) (string, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	}, s3.WithPresignExpires(s.config.PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("error presigning document %s: %w", fileID, err)
	}

	return req.URL, nil
}

// DownloadFile descarga el documento fuente desde el bucket
func (s *FileStorage) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return nil, fmt.Errorf("error downloading document %s: %w", fileID, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading document %s: %w", fileID, err)
	}

	return data, nil
}
