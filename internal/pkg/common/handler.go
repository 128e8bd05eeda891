package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"sync"
	"ustp_things/internal/pkg/uploader"
	"ustp_things/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	maxFiles    = 6
	maxFileSize = 5 << 20
)

type UploadHandler struct {
	uploader uploader.Uploader
}

func NewUploadHandler(u uploader.Uploader) *UploadHandler {
	return &UploadHandler{uploader: u}
}

// UploadFile 上传商品图片 (支持批量)
// @Summary 上传商品图片到 OSS (支持批量)
// @Tags Common
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files"
// @Success 200 {object} response.Response{data=[]string} "URLs"
// @Router /upload [post]
func (h *UploadHandler) UploadFile(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid form data")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "No files uploaded")
		return
	}
	if len(files) > maxFiles {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Too many files")
		return
	}
	for _, f := range files {
		if f.Size > maxFileSize {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "File too large: "+f.Filename)
			return
		}
	}

	if h.uploader == nil {
		response.Error(c, http.StatusServiceUnavailable, response.ErrServerInternal, "Uploader not configured")
		return
	}

	// 按索引写入保证顺序，并发数限制为 3
	urls := make([]string, len(files))
	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		upErr   error
	)
	sem := make(chan struct{}, 3)

	for i, file := range files {
		wg.Add(1)
		go func(index int, f *multipart.FileHeader) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			src, err := f.Open()
			if err != nil {
				errOnce.Do(func() { upErr = err })
				return
			}
			defer src.Close()

			url, err := h.uploader.Upload(c.Request.Context(), f.Filename, src)
			if err != nil {
				errOnce.Do(func() { upErr = err })
				return
			}
			urls[index] = url
		}(i, file)
	}

	wg.Wait()

	if upErr != nil {
		if errors.Is(upErr, uploader.ErrUnsupportedType) {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, upErr.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Upload failed: "+upErr.Error())
		return
	}

	response.Success(c, urls)
}
