package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC. Set GCS_CREDENTIALS_JSON to pass explicit credentials (e.g. locally).
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func gcsBucket() (string, error) {
	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	return bucketName, nil
}

// SaveObject stores the reader under objectName with the configured storage provider.
func SaveObject(ctx context.Context, objectName string, contentType string, r io.Reader) error {
	if GetStorageProvider() == StorageProviderLocal {
		return saveObjectLocal(objectName, r)
	}
	return saveObjectToGCS(ctx, objectName, contentType, r)
}

func saveObjectToGCS(ctx context.Context, objectName string, contentType string, r io.Reader) error {
	bucketName, err := gcsBucket()
	if err != nil {
		return err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return fmt.Errorf("upload %q: %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalize %q: %w", objectName, err)
	}
	return nil
}

func saveObjectLocal(objectName string, r io.Reader) error {
	if strings.Contains(objectName, "..") {
		return errors.New("invalid object name")
	}
	path := filepath.Join(LocalStorageDir(), filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}
