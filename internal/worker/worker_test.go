package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/UnendingLoop/ImageShrinker/internal/imageproc"
	"github.com/UnendingLoop/ImageShrinker/internal/model"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func ptr(v int) *int { return &v }

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 60, B: 30, A: 255})
		}
	}
	return img
}

func validPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func validJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), nil))
	return buf.Bytes()
}

func TestWorker_initProcessor(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	tests := []struct {
		name      string
		image     *model.Image
		getErr    error
		updateErr error
		wantErr   bool
	}{
		{
			name:    "already done",
			image:   &model.Image{Status: model.StatusDone},
			wantErr: false,
		},
		{
			name:    "in progress",
			image:   &model.Image{Status: model.StatusInProgress},
			wantErr: true,
		},
		{
			name:    "image not found",
			getErr:  model.ErrImageNotFound,
			wantErr: true,
		},
		{
			name:      "update status error",
			image:     &model.Image{Status: model.StatusCreated},
			updateErr: errors.New("db down"),
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWorkerService{
				getFn: func(ctx context.Context, _ string) (*model.Image, error) {
					return tt.image, tt.getErr
				},
				updateFn: func(ctx context.Context, _ string, _ model.Status) error {
					return tt.updateErr
				},
				saveResultFn: func(ctx context.Context, _ *model.Image) error {
					return nil
				},
			}

			w := &Worker{
				service:      svc,
				storage:      &mockStorage{},
				resultPrefix: "res/",
			}

			err := w.initProcessor(ctx, id)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// Processing failure marks the task `failed` and persists the error text
func TestWorker_initProcessor_RecordsFailure(t *testing.T) {
	ctx := context.Background()

	img := &model.Image{
		UID:       uuid.New(),
		Status:    model.StatusCreated,
		SourceKey: "src/broken.bin",
	}

	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(bytes.NewReader([]byte("not-an-image"))), "", nil
		},
	}

	var saved *model.Image
	svc := &mockWorkerService{
		getFn:    func(ctx context.Context, _ string) (*model.Image, error) { return img, nil },
		updateFn: func(ctx context.Context, _ string, _ model.Status) error { return nil },
		saveResultFn: func(ctx context.Context, res *model.Image) error {
			saved = res
			return nil
		},
	}

	w := &Worker{storage: storage, service: svc, resultPrefix: "res/"}

	err := w.initProcessor(ctx, img.UID.String())
	require.Error(t, err)

	require.NotNil(t, saved)
	require.Equal(t, model.StatusFailed, saved.Status)
	require.Len(t, saved.ErrMsg, 1)
	require.Contains(t, saved.ErrMsg[0], "format")
}

func TestWorker_processTask_OK(t *testing.T) {
	ctx := context.Background()

	img := &model.Image{
		UID:         uuid.New(),
		Status:      model.StatusInProgress,
		SourceKey:   "src.png",
		TargetBytes: ptr(40000),
		Quality:     ptr(85),
	}

	var stored []byte
	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(bytes.NewReader(validPNG(t, 400, 300))), model.PNG, nil
		},
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			require.Contains(t, key, "res/")
			require.Equal(t, model.PNG, ct)

			var err error
			stored, err = io.ReadAll(r)
			require.NoError(t, err)
			return nil
		},
	}

	svc := &mockWorkerService{
		saveResultFn: func(ctx context.Context, img *model.Image) error {
			require.Equal(t, model.StatusDone, img.Status)
			require.NotEmpty(t, img.ResultKey)
			return nil
		},
		updateFn: func(ctx context.Context, _ string, _ model.Status) error {
			return nil
		},
		getFn: func(ctx context.Context, _ string) (*model.Image, error) {
			return img, nil
		},
	}

	w := &Worker{
		storage:      storage,
		service:      svc,
		resultPrefix: "res/",
	}

	require.NoError(t, w.processTask(ctx, img))

	// результат должен влезать в пиксельный бюджет задачи
	decoded, err := imaging.Decode(bytes.NewReader(stored))
	require.NoError(t, err)

	wantW, wantH := imageproc.FitDimensions(400, 300, 40000)
	require.Equal(t, wantW, decoded.Bounds().Dx())
	require.Equal(t, wantH, decoded.Bounds().Dy())
}

func TestWorker_processTask_DefaultsWhenUnset(t *testing.T) {
	ctx := context.Background()

	// 100x50 = 5000 pixels < default budget - размер не меняется
	img := &model.Image{
		UID:       uuid.New(),
		Status:    model.StatusInProgress,
		SourceKey: "src.jpg",
	}

	var stored []byte
	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(bytes.NewReader(validJPEG(t, 100, 50))), model.JPEG, nil
		},
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			var err error
			stored, err = io.ReadAll(r)
			require.NoError(t, err)
			return nil
		},
	}

	svc := &mockWorkerService{
		saveResultFn: func(ctx context.Context, img *model.Image) error { return nil },
		updateFn:     func(ctx context.Context, _ string, _ model.Status) error { return nil },
		getFn:        func(ctx context.Context, _ string) (*model.Image, error) { return img, nil },
	}

	w := &Worker{storage: storage, service: svc, resultPrefix: "res/"}

	require.NoError(t, w.processTask(ctx, img))

	decoded, err := imaging.Decode(bytes.NewReader(stored))
	require.NoError(t, err)
	require.Equal(t, 100, decoded.Bounds().Dx())
	require.Equal(t, 50, decoded.Bounds().Dy())
}

func TestWorker_processTask_BaseImageError(t *testing.T) {
	w := &Worker{
		storage: &mockStorage{
			getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
				return nil, "", errors.New("storage down")
			},
		},
	}

	err := w.processTask(context.Background(), &model.Image{})
	require.Error(t, err)
}

func TestWorker_processTask_UnsupportedFormat(t *testing.T) {
	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(bytes.NewReader([]byte("not-an-image"))), "", nil
		},
	}

	w := &Worker{storage: storage}

	err := w.processTask(context.Background(), &model.Image{})
	require.Error(t, err)
}

func TestValidateImgFormat(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    imaging.Format
		wantErr bool
	}{
		{"valid png", validPNG(t, 10, 10), imaging.PNG, false},
		{"valid jpeg", validJPEG(t, 10, 10), imaging.JPEG, false},
		{"invalid data", []byte("xxx"), -1, true},
		{"nil reader", nil, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r io.ReadCloser
			if tt.data != nil {
				r = io.NopCloser(bytes.NewReader(tt.data))
			}

			_, format, err := validateImgFormat(r)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, format)
		})
	}
}
