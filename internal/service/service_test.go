package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/UnendingLoop/ImageShrinker/internal/imageproc"
	"github.com/UnendingLoop/ImageShrinker/internal/model"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

func encodedTestImage(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 180, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

// CREATE - SUCCESS
func TestImageService_Create_OK(t *testing.T) {
	ctx := context.Background()

	repo := &mockRepo{
		createFn: func(ctx context.Context, img *model.Image) error {
			require.NotEmpty(t, img.UID)
			require.Equal(t, model.StatusCreated, img.Status)
			return nil
		},
	}

	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			return nil
		},
	}

	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			require.NotEmpty(t, key)
			return nil
		},
	}

	svc := ImageService{
		repo:         repo,
		storage:      storage,
		publisher:    pub,
		srcKeyPrefix: "src/",
	}

	img, err := svc.Create(ctx, validCreateData())
	require.NoError(t, err)
	require.NotNil(t, img)

	// дефолты должны быть проставлены
	require.NotNil(t, img.TargetBytes)
	require.Equal(t, imageproc.DefaultTargetBytes, *img.TargetBytes)
	require.NotNil(t, img.Quality)
	require.Equal(t, imageproc.DefaultQuality, *img.Quality)
}

// CREATE - VALIDATION FAIL
func TestImageService_Create_InvalidInput(t *testing.T) {
	svc := ImageService{}

	_, err := svc.Create(context.Background(), &model.ImageCreateData{})
	require.ErrorIs(t, err, model.ErrEmptySource)
}

func TestImageService_Create_InvalidQuality(t *testing.T) {
	svc := ImageService{}

	tests := []struct {
		name    string
		quality int
	}{
		{"above range", 101},
		{"below range", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validCreateData()
			data.Quality = &tt.quality

			_, err := svc.Create(context.Background(), data)
			require.ErrorIs(t, err, model.ErrIncorrectQuality)
		})
	}
}

func TestImageService_Create_InvalidTarget(t *testing.T) {
	svc := ImageService{}

	target := -5
	data := validCreateData()
	data.TargetBytes = &target

	_, err := svc.Create(context.Background(), data)
	require.ErrorIs(t, err, model.ErrIncorrectTarget)
}

// CREATE - STORAGE PUT FAIL
func TestImageService_Create_StorageError(t *testing.T) {
	repo := &mockRepo{}
	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			return errors.New("storage is down")
		},
	}

	svc := ImageService{
		repo:         repo,
		storage:      storage,
		srcKeyPrefix: "src/",
	}

	_, err := svc.Create(context.Background(), validCreateData())
	require.ErrorIs(t, err, model.ErrCommon500)
}

// DOWNSIZE-SYNC - SUCCESS
func TestImageService_DownsizeSync_OK(t *testing.T) {
	svc := ImageService{}

	raw := encodedTestImage(t, 300, 300, imaging.PNG)
	target := 40000
	data := &model.ImageCreateData{
		OrigImg:         newFakeFile(raw),
		OrigImgSize:     int64(len(raw)),
		OrigContentType: model.PNG,
		TargetBytes:     &target,
	}

	out, cType, err := svc.DownsizeSync(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, model.PNG, cType)

	decoded, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	wantW, wantH := imageproc.FitDimensions(300, 300, target)
	require.Equal(t, wantW, decoded.Bounds().Dx())
	require.Equal(t, wantH, decoded.Bounds().Dy())
}

// DOWNSIZE-SYNC - BROKEN IMAGE
func TestImageService_DownsizeSync_BrokenImage(t *testing.T) {
	svc := ImageService{}

	data := &model.ImageCreateData{
		OrigImg:         newFakeFile([]byte("not-an-image")),
		OrigImgSize:     12,
		OrigContentType: model.PNG,
	}

	_, _, err := svc.DownsizeSync(context.Background(), data)
	require.ErrorIs(t, err, model.ErrUnsupportedFormat)
}

// DOWNSIZE-SYNC - VALIDATION BEFORE WORK
func TestImageService_DownsizeSync_InvalidQuality(t *testing.T) {
	svc := ImageService{}

	quality := 200
	data := validCreateData()
	data.Quality = &quality

	_, _, err := svc.DownsizeSync(context.Background(), data)
	require.ErrorIs(t, err, model.ErrIncorrectQuality)
}

// GETLIST - SUCCESS
func TestImageService_GetList_OK(t *testing.T) {
	repo := &mockRepo{
		getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.Image, error) {
			require.Equal(t, 1, req.Page)
			return []model.Image{{UID: uuid.New()}}, nil
		},
	}

	svc := ImageService{repo: repo}

	res, err := svc.GetList(context.Background(), &model.ListRequest{})
	require.NoError(t, err)
	require.Len(t, res, 1)
}

// GET - SUCCESS
func TestImageService_Get_OK(t *testing.T) {
	id := uuid.New().String()

	repo := &mockRepo{
		getFn: func(ctx context.Context, uid string) (*model.Image, error) {
			return &model.Image{UID: uuid.MustParse(uid)}, nil
		},
	}

	svc := ImageService{repo: repo}

	img, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, img.UID.String())
}

// GET - FAIL
func TestImageService_Get_InvalidID(t *testing.T) {
	svc := ImageService{}
	_, err := svc.Get(context.Background(), "bad-id")
	require.ErrorIs(t, err, model.ErrIncorrectID)
}

// LOADRESULT - FAIL
func TestImageService_LoadResult_NotReady(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Image, error) {
			return &model.Image{Status: model.StatusCreated}, nil
		},
	}

	svc := ImageService{repo: repo}

	_, _, err := svc.LoadResult(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrResultNotReady)
}

// DELETE - FAIL - NOT FOUND
func TestImageService_Delete_NotFound(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Image, error) {
			return nil, sql.ErrNoRows
		},
	}

	svc := ImageService{repo: repo}

	err := svc.Delete(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrImageNotFound)
}

// DELETE - SUCCESS - REMOVES BLOBS
func TestImageService_Delete_OK(t *testing.T) {
	deleted := map[string]bool{}

	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.Image, error) {
			return &model.Image{
				Status:    model.StatusDone,
				SourceKey: "src/abc.jpg",
				ResultKey: "res/abc.jpg",
			}, nil
		},
		deleteFn: func(ctx context.Context, id string) error { return nil },
	}

	storage := &mockStorage{
		deleteFn: func(ctx context.Context, key string) error {
			deleted[key] = true
			return nil
		},
	}

	svc := ImageService{repo: repo, storage: storage}

	require.NoError(t, svc.Delete(context.Background(), uuid.New().String()))
	require.True(t, deleted["src/abc.jpg"])
	require.True(t, deleted["res/abc.jpg"])
}

// REVIVEORPHANS - resets stuck tasks to `created` and republishes them
func TestImageService_ReviveOrphans(t *testing.T) {
	published := 0
	reset := map[string]model.Status{}
	orphans := []string{uuid.New().String(), uuid.New().String()}

	repo := &mockRepo{
		fetchOrphansFn: func(ctx context.Context, limit int) ([]string, error) {
			return orphans, nil
		},
		updateStatusFn: func(ctx context.Context, id string, st model.Status) error {
			reset[id] = st
			return nil
		},
	}
	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			// к моменту публикации статус уже должен быть сброшен - иначе воркер отбросит задачу
			require.Equal(t, model.StatusCreated, reset[string(key)])
			published++
			return nil
		},
	}

	svc := ImageService{repo: repo, publisher: pub}

	svc.ReviveOrphans(context.Background(), 10)
	require.Equal(t, 2, published)
	for _, id := range orphans {
		require.Equal(t, model.StatusCreated, reset[id])
	}
}

// REVIVEORPHANS - a task whose status cannot be reset stays out of the queue
func TestImageService_ReviveOrphans_ResetFails(t *testing.T) {
	published := 0

	repo := &mockRepo{
		fetchOrphansFn: func(ctx context.Context, limit int) ([]string, error) {
			return []string{uuid.New().String()}, nil
		},
		updateStatusFn: func(ctx context.Context, id string, st model.Status) error {
			return errors.New("db down")
		},
	}
	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			published++
			return nil
		},
	}

	svc := ImageService{repo: repo, publisher: pub}

	svc.ReviveOrphans(context.Background(), 10)
	require.Equal(t, 0, published)
}
