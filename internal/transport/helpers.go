package transport

import (
	"errors"
	"io"
	"log"
	"strconv"

	"github.com/UnendingLoop/ImageShrinker/internal/imageproc"
	"github.com/UnendingLoop/ImageShrinker/internal/model"
	"github.com/wb-go/wbf/ginext"
)

// parseCreateForm - общий разбор multipart-формы для Create и DownsizeNow.
// При ошибке сам пишет 400 в ответ и возвращает ok=false.
func parseCreateForm(ctx *ginext.Context) (*model.ImageCreateData, bool) {
	target, err := formIntPtr(ctx.PostForm("target_bytes"))
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "target_bytes must be an integer"})
		return nil, false
	}

	quality, err := formIntPtr(ctx.PostForm("quality"))
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "quality must be an integer"})
		return nil, false
	}

	// парсинг исходника
	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return nil, false
	}

	return &model.ImageCreateData{
		TargetBytes:     target,
		Quality:         quality,
		OrigImg:         imageFile,
		OrigContentType: imageHeader.Header.Get("Content-Type"),
		OrigImgSize:     imageHeader.Size,
	}, true
}

// formIntPtr - пустое поле формы остается nil-ом, чтобы сервис подставил дефолт
func formIntPtr(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &val, nil
}

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrImageNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrIncorrectQuality),
		errors.Is(err, model.ErrIncorrectTarget),
		errors.Is(err, model.ErrUnsupportedFormat),
		errors.Is(err, imageproc.ErrBadQuality),
		errors.Is(err, imageproc.ErrBadTarget),
		errors.Is(err, imageproc.ErrNoInput),
		errors.Is(err, imageproc.ErrAmbiguousInput):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
