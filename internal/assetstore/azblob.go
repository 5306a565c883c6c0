package assetstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
)

type AzblobStore struct {
	keys      keyBuilder
	account   string
	container string
	cred      *azblob.SharedKeyCredential
	client    *azblob.Client
}

func NewAzblobStore(clk clock.Clock, cfg config.AssetConfig) (*AzblobStore, error) {
	if cfg.AzureAccount == "" || cfg.AzureKey == "" {
		return nil, fmt.Errorf("azblob backend requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccount, cfg.AzureKey)
	if err != nil {
		return nil, err
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AzureAccount)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, err
	}
	return &AzblobStore{
		keys:      keyBuilder{clock: clk},
		account:   cfg.AzureAccount,
		container: cfg.Bucket,
		cred:      cred,
		client:    client,
	}, nil
}

func (s *AzblobStore) Backend() string { return BackendAzblob }

func (s *AzblobStore) Put(ctx context.Context, accountID snowflake.ID, localKey string, data []byte, contentType string) (string, error) {
	if err := validatePut(data); err != nil {
		return "", err
	}
	key, err := s.keys.build(accountID, localKey, contentType)
	if err != nil {
		return "", err
	}

	_, err = s.client.UploadBuffer(ctx, s.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	})
	if err != nil {
		return "", unavailable(BackendAzblob, err)
	}
	return key, nil
}

func (s *AzblobStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := validateKey(key); err != nil {
		return nil, "", err
	}
	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", unavailable(BackendAzblob, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", unavailable(BackendAzblob, err)
	}
	contentType := ""
	if resp.ContentType != nil {
		contentType = *resp.ContentType
	}
	return data, contentType, nil
}

func (s *AzblobStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if err := validateKey(key); err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		return "", time.Time{}, ErrInvalidTTL
	}

	now := s.keys.clock.Now()
	expiresAt := now.Add(ttl)
	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     now.Add(-5 * time.Minute),
		ExpiryTime:    expiresAt,
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: s.container,
		BlobName:      key,
	}
	params, err := values.SignWithSharedKey(s.cred)
	if err != nil {
		return "", time.Time{}, unavailable(BackendAzblob, err)
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s?%s",
		s.account, s.container, key, params.Encode()), expiresAt, nil
}
