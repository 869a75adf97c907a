// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"
	"log"

	"github.com/UnendingLoop/ImageShrinker/internal/model"
	"github.com/wb-go/wbf/ginext"
)

type ImageHandler struct {
	service ImageService
}

type ImageService interface {
	Create(ctx context.Context, newImage *model.ImageCreateData) (*model.Image, error)
	DownsizeSync(ctx context.Context, newImage *model.ImageCreateData) ([]byte, string, error) // ужать сразу, без очереди
	Delete(ctx context.Context, id string) error                                               // удалить как в базе, так и в minio
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error)                  // прям скачать результат
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Image, error)                // получить список
}

func NewImageHandler(svc ImageService) *ImageHandler {
	return &ImageHandler{
		service: svc,
	}
}

func (h ImageHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h ImageHandler) Create(ctx *ginext.Context) {
	newImageRaw, ok := parseCreateForm(ctx)
	if !ok {
		return
	}
	defer closeFileFlow(newImageRaw.OrigImg)

	// передаем в сервис
	res, err := h.service.Create(ctx.Request.Context(), newImageRaw)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

// DownsizeNow - синхронный путь: ответ сразу содержит ужатую картинку
func (h ImageHandler) DownsizeNow(ctx *ginext.Context) {
	newImageRaw, ok := parseCreateForm(ctx)
	if !ok {
		return
	}
	defer closeFileFlow(newImageRaw.OrigImg)

	res, cType, err := h.service.DownsizeSync(ctx.Request.Context(), newImageRaw)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Data(200, cType, res)
}

func (h ImageHandler) GetAllImages(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse query-params"})
		return
	}

	res, err := h.service.GetList(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h ImageHandler) LoadResult(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadResult(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		log.Printf("Failed to write response at byte %d for file id %q: %v", n, id, err)
	}
}

func (h ImageHandler) Delete(ctx *ginext.Context) {
	id := ctx.Param("id")
	if err := h.service.Delete(ctx.Request.Context(), id); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}
