package service

import (
	"strings"

	"github.com/UnendingLoop/ImageShrinker/internal/imageproc"
	"github.com/UnendingLoop/ImageShrinker/internal/model"
)

func validateQueryParams(req *model.ListRequest) {
	// Обрабатываем пустые значения, присваиваем дефолты если надо
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}
	if req.Sort == "" {
		req.Sort = model.ByCreated
	}
	if req.Order == "" {
		req.Order = model.OrderDESC
	}

	// Валидируем непустое поле типа сортировки
	req.Sort = strings.ToLower(req.Sort)
	req.Sort = strings.TrimSpace(req.Sort)
	switch {
	case strings.Contains(req.Sort, model.ByUUID):
		req.Sort = "uid"
	case strings.Contains(req.Sort, model.ByCreated):
		req.Sort = "created_at"
	default:
		req.Sort = "created_at" // по дефолту ставим сортировку по времени создания
	}

	// Валидируем непустой порядок
	req.Order = strings.ToLower(req.Order)
	req.Order = strings.TrimSpace(req.Order)
	switch {
	case strings.Contains(req.Order, model.OrderASC):
		req.Order = "ASC"
	case strings.Contains(req.Order, model.OrderDESC):
		req.Order = "DESC"
	default:
		req.Order = "DESC" // по дефолту ставим сортировку "новое-выше"
	}
}

func validateNormalizeImageInfo(raw *model.ImageCreateData, clean *model.Image) error {
	// корректен ли исходник
	if raw.OrigImg == nil || raw.OrigImgSize <= 0 || !model.InImageTypeMap[raw.OrigContentType] {
		return model.ErrEmptySource
	}

	// бюджет: дефолт если не передан
	target := imageproc.DefaultTargetBytes
	if raw.TargetBytes != nil {
		target = *raw.TargetBytes
	}
	if target <= 0 {
		return model.ErrIncorrectTarget
	}

	// качество: дефолт если не передано, ноль - валидное значение
	quality := imageproc.DefaultQuality
	if raw.Quality != nil {
		quality = *raw.Quality
	}
	if quality < 0 || quality > 100 {
		return model.ErrIncorrectQuality
	}

	clean.TargetBytes = &target
	clean.Quality = &quality

	return nil
}
