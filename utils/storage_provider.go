package utils

import (
	"os"
	"strings"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderLocal = "local"
)

// GetStorageProvider selects where uploaded receipts go. Local is for development only.
func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderGCS
	}
	return provider
}

func LocalStorageDir() string {
	if v := strings.TrimSpace(os.Getenv("LOCAL_STORAGE_DIR")); v != "" {
		return v
	}
	return "uploads"
}
