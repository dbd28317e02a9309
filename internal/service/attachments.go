package service

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AttachmentInput is an upload as the client sent it: base64, either raw or
// wrapped in a data: URI.
type AttachmentInput struct {
	Filename string
	FileData string
}

// decodeFileData accepts "data:<mime>;base64,<payload>" or bare base64.
func decodeFileData(raw string) ([]byte, error) {
	payload := strings.TrimSpace(raw)
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("unsupported data URI")
		}
		payload = body
	}
	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	return data, err
}

// Checksum returns the hex BLAKE3-256 digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EncodeDataURL renders an attachment the way browsers embed images.
func EncodeDataURL(a domain.Attachment) string {
	return "data:" + a.ContentType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// buildAttachments decodes and validates uploads. Nothing is stored when
// any upload is rejected.
func buildAttachments(inputs []AttachmentInput, limits config.AttachmentConfig, now time.Time) ([]domain.Attachment, error) {
	if limits.MaxCount > 0 && len(inputs) > limits.MaxCount {
		return nil, apperrors.NewInvalidReference(apperrors.CodeInvalidAttachment,
			fmt.Sprintf("at most %d attachments per ticket", limits.MaxCount),
			map[string]any{"count": len(inputs)})
	}

	result := make([]domain.Attachment, 0, len(inputs))
	for i, input := range inputs {
		filename := strings.TrimSpace(input.Filename)
		if filename == "" {
			filename = fmt.Sprintf("adjunto-%d", i+1)
		}
		reject := func(reason string) error {
			return apperrors.NewInvalidReference(apperrors.CodeInvalidAttachment, "invalid attachment",
				map[string]any{"index": i, "filename": filename, "reason": reason})
		}

		data, err := decodeFileData(input.FileData)
		if err != nil {
			return nil, reject("file_data is not valid base64")
		}
		if len(data) == 0 {
			return nil, reject("file is empty")
		}
		if limits.MaxBytes > 0 && int64(len(data)) > limits.MaxBytes {
			return nil, reject(fmt.Sprintf("file exceeds %d bytes", limits.MaxBytes))
		}
		contentType := http.DetectContentType(data)
		if !strings.HasPrefix(contentType, "image/") {
			return nil, reject("only images are accepted")
		}

		result = append(result, domain.Attachment{
			Filename:    filename,
			ContentType: contentType,
			SizeBytes:   int64(len(data)),
			Checksum:    Checksum(data),
			Data:        data,
			UploadedAt:  now,
		})
	}
	return result, nil
}
