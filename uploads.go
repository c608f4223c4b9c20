package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/distribution_backend/config"
	"github.com/mmdatafocus/distribution_backend/utils"
	"github.com/sirupsen/logrus"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

// receipt images wider than this are downscaled before storage
const maxReceiptWidth = 1600

var receiptContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

var (
	errUnsupportedReceipt = errors.New("receipt must be a pdf, jpg, jpeg or png file")
	errReceiptTooLarge    = errors.New("file size exceeds 5MB limit")
	errEmptyReceipt       = errors.New("file is empty")
)

type uploadReceiptResponse struct {
	ReceiptRef  string `json:"receipt_ref"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// receiptExtension returns the normalized extension of an accepted receipt file name.
func receiptExtension(fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if _, ok := receiptContentTypes[ext]; !ok {
		return "", errUnsupportedReceipt
	}
	return ext, nil
}

func checkReceiptSize(size int64) error {
	if size <= 0 {
		return errEmptyReceipt
	}
	if size > maxUploadSizeBytes {
		return errReceiptTooLarge
	}
	return nil
}

func receiptObjectKey(ext string) string {
	return path.Join("receipts", uuid.NewString()+ext)
}

// downscaleReceipt shrinks wide images and re-encodes them in their own format.
// PDFs and images already within bounds are returned unchanged.
func downscaleReceipt(data []byte, ext string) ([]byte, error) {
	if ext == ".pdf" {
		return data, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode receipt image: %w", err)
	}
	if img.Bounds().Dx() <= maxReceiptWidth {
		return data, nil
	}
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, err
	}
	resized := imaging.Resize(img, maxReceiptWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// uploadReceiptHandler stores a settlement receipt and returns the reference a settlement cites.
func uploadReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		ctx := c.Request.Context()
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSizeBytes+1024*1024)

		fileHeader, err := c.FormFile("file")
		if err != nil {
			badRequest(c, "multipart field \"file\" is required")
			return
		}
		ext, err := receiptExtension(fileHeader.Filename)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := checkReceiptSize(fileHeader.Size); err != nil {
			badRequest(c, err.Error())
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			badRequest(c, "could not read file")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
		if err != nil {
			badRequest(c, "could not read file")
			return
		}
		if err := checkReceiptSize(int64(len(data))); err != nil {
			badRequest(c, err.Error())
			return
		}

		data, err = downscaleReceipt(data, ext)
		if err != nil {
			badRequest(c, "receipt image could not be decoded")
			return
		}

		objectKey := receiptObjectKey(ext)
		contentType := receiptContentTypes[ext]
		if err := utils.SaveObject(ctx, objectKey, contentType, bytes.NewReader(data)); err != nil {
			cid, _ := utils.GetCorrelationIdFromContext(ctx)
			logger.WithFields(logrus.Fields{
				"error":          err.Error(),
				"provider":       utils.GetStorageProvider(),
				"correlation_id": cid,
			}).Error("[upload.error]")
			message := "failed to store receipt"
			if !config.IsProduction() {
				message = fmt.Sprintf("failed to store receipt: %v", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": message})
			return
		}

		c.JSON(http.StatusCreated, uploadReceiptResponse{
			ReceiptRef:  objectKey,
			ContentType: contentType,
			Size:        int64(len(data)),
		})
	}
}
