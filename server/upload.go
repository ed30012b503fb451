package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"Romaly/core/apperr"
	"Romaly/logger"
	"Romaly/storage"
)

// 表单里除文件外的字段很小，内存里放 1MB 足够
const formOverhead = 1 << 20

func policyError(p storage.Policy, err error) error {
	switch {
	case errors.Is(err, storage.ErrMissingFile):
		return apperr.Validation("No file uploaded")
	case errors.Is(err, storage.ErrTooLarge):
		return apperr.Validation(fmt.Sprintf("File is too large (max %s)", storage.FormatSize(p.MaxBytes)))
	case errors.Is(err, storage.ErrTypeNotAllowed):
		return apperr.Validation("Only " + strings.Join(p.Types, ", ") + " files are allowed")
	}
	return apperr.Validation("Invalid upload")
}

// parseMultipart 限制整个请求体的大小，超限时 ParseMultipartForm 报错
func parseMultipart(w http.ResponseWriter, r *http.Request, p storage.Policy) error {
	r.Body = http.MaxBytesReader(w, r.Body, p.MaxBytes+formOverhead)
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return policyError(p, storage.ErrTooLarge)
		}
		return apperr.Validation("Failed to parse multipart form")
	}
	return nil
}

// storeUpload 校验并保存表单文件。字段不存在时 required 决定是否报错，返回的 ref 为空表示没有上传。
func (h *APIHandler) storeUpload(ctx context.Context, r *http.Request, field string, p storage.Policy, required bool) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return "", nil
		}
		return "", policyError(p, storage.ErrMissingFile)
	}
	defer file.Close()

	checked, err := p.Check(file, header.Size, header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		logger.Warn("上传文件未通过校验",
			logger.String("field", field),
			logger.String("filename", header.Filename),
			logger.ErrorField(err))
		return "", policyError(p, err)
	}

	ref, err := h.assets.Put(ctx, p.Kind, file, header.Size, checked.ContentType, checked.Ext)
	if err != nil {
		return "", apperr.Storage("Failed to store file", err)
	}
	logger.Debug("文件已保存", logger.String("ref", ref), logger.Int64("size", header.Size))
	return ref, nil
}
