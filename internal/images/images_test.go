package images_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"minimarket/internal/apperrors"
	"minimarket/internal/images"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dimensions(t *testing.T, data []byte) (int, int, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height, format
}

func TestNormalizer_FitsLargeImage(t *testing.T) {
	n := images.NewNormalizer()
	raw := encodePNG(t, 1200, 1200)
	original := append([]byte(nil), raw...)

	out, err := n.Normalize("image/png", raw)
	require.NoError(t, err)

	w, h, format := dimensions(t, out)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 400, w)
	assert.Equal(t, 400, h)
	assert.Equal(t, original, raw, "input must not be modified")
}

func TestNormalizer_DoesNotUpscale(t *testing.T) {
	n := images.NewNormalizer()

	out, err := n.Normalize("image/png", encodePNG(t, 120, 80))
	require.NoError(t, err)

	w, h, format := dimensions(t, out)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 120, w)
	assert.Equal(t, 80, h)
}

func TestNormalizer_Idempotent(t *testing.T) {
	n := images.NewNormalizer()

	once, err := n.Normalize("image/png", encodePNG(t, 1600, 900))
	require.NoError(t, err)
	twice, err := n.Normalize("image/jpeg", once)
	require.NoError(t, err)

	w1, h1, f1 := dimensions(t, once)
	w2, h2, f2 := dimensions(t, twice)
	// the scaled side is truncated: 900*600/1600 = 337.5
	assert.Equal(t, 600, w1)
	assert.Equal(t, 337, h1)
	assert.Equal(t, []interface{}{w1, h1, f1}, []interface{}{w2, h2, f2})
}

func TestNormalizer_RejectsOversizeBeforeType(t *testing.T) {
	n := images.NewNormalizer()
	raw := make([]byte, images.MaxUploadBytes+1)

	_, err := n.Normalize("application/pdf", raw)
	assert.ErrorIs(t, err, apperrors.ErrPayloadTooLarge)
}

func TestNormalizer_RejectsDecompressionBomb(t *testing.T) {
	n := images.NewNormalizer()

	// a blank canvas just over the pixel budget compresses to a few dozen KiB
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8000, 5001))))
	raw := buf.Bytes()
	require.Less(t, len(raw), images.MaxUploadBytes)

	_, err := n.Normalize("image/png", raw)
	assert.ErrorIs(t, err, apperrors.ErrPayloadTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, apperrors.HTTPStatus(apperrors.KindOf(err)))
}

func TestNormalizer_UnsupportedType(t *testing.T) {
	n := images.NewNormalizer()

	_, err := n.Normalize("image/svg+xml", []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedMediaType)

	_, err = n.Normalize("text/plain", encodePNG(t, 10, 10))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedMediaType)
}

func TestNormalizer_CorruptImage(t *testing.T) {
	n := images.NewNormalizer()
	garbage := make([]byte, 2048)
	rand.New(rand.NewSource(1)).Read(garbage)

	_, err := n.Normalize("image/jpeg", garbage)
	assert.ErrorIs(t, err, apperrors.ErrInvalidImage)
	assert.Equal(t, 400, apperrors.HTTPStatus(apperrors.KindOf(err)))
}

func TestAllowed(t *testing.T) {
	assert.True(t, images.Allowed("image/JPEG"))
	assert.True(t, images.Allowed("image/jpg"))
	assert.True(t, images.Allowed("image/png; charset=binary"))
	assert.True(t, images.Allowed("image/webp"))
	assert.False(t, images.Allowed("image/svg+xml"))
	assert.False(t, images.Allowed(""))
}

func smallJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil))
	return buf.Bytes()
}

func TestImgBBStore_Success(t *testing.T) {
	var gotKey, gotImage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		_ = r.ParseForm()
		gotImage = r.PostForm.Get("image")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"status":200,"data":{"url":"https://i.ibb.co/abc/photo.jpg"}}`))
	}))
	defer srv.Close()

	store := images.NewImgBBStore(srv.URL, "secret-key", time.Second)
	url, err := store.Upload(context.Background(), smallJPEG(t))
	require.NoError(t, err)
	assert.Equal(t, "https://i.ibb.co/abc/photo.jpg", url)
	assert.Equal(t, "secret-key", gotKey)
	assert.NotEmpty(t, gotImage)
}

func TestImgBBStore_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status_code":400,"error":{"message":"Invalid API v1 key.","code":100},"status_txt":"Bad Request"}`))
	}))
	defer srv.Close()

	store := images.NewImgBBStore(srv.URL, "bad-key", time.Second)
	_, err := store.Upload(context.Background(), smallJPEG(t))
	assert.ErrorIs(t, err, apperrors.ErrUploadFailed)
	assert.Contains(t, err.Error(), "Invalid API v1 key.")
}

func TestImgBBStore_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	store := images.NewImgBBStore(srv.URL, "key", 50*time.Millisecond)
	_, err := store.Upload(context.Background(), smallJPEG(t))
	assert.ErrorIs(t, err, apperrors.ErrUploadFailed)
}

func TestImgBBStore_MissingKeyMakesNoRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	store := images.NewImgBBStore(srv.URL, "", time.Second)
	_, err := store.Upload(context.Background(), smallJPEG(t))
	assert.ErrorIs(t, err, apperrors.ErrUploadFailed)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

type fakeS3 struct {
	input *s3.PutObjectInput
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Upload(t *testing.T) {
	client := &fakeS3{}
	store := images.NewS3StoreWithClient(client, "shop", "https://cdn.example.com/", time.Second)

	url, err := store.Upload(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	require.NotNil(t, client.input)
	assert.Equal(t, "shop", *client.input.Bucket)
	assert.Equal(t, images.OutputType, *client.input.ContentType)
	assert.Equal(t, "https://cdn.example.com/"+*client.input.Key, url)
}

func TestS3Store_Failure(t *testing.T) {
	store := images.NewS3StoreWithClient(&fakeS3{err: errors.New("access denied")}, "shop", "https://cdn.example.com", time.Second)

	_, err := store.Upload(context.Background(), []byte("jpeg"))
	assert.ErrorIs(t, err, apperrors.ErrUploadFailed)
}

func TestLimitedStore_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	slow := images.StoreFunc(func(ctx context.Context, data []byte) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "ok", nil
	})
	store := images.NewLimitedStore(slow, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Upload(context.Background(), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestLimitedStore_CancelledWhileWaiting(t *testing.T) {
	block := make(chan struct{})
	store := images.NewLimitedStore(images.StoreFunc(func(ctx context.Context, data []byte) (string, error) {
		<-block
		return "ok", nil
	}), 1)

	go func() { _, _ = store.Upload(context.Background(), nil) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := store.Upload(ctx, nil)
	close(block)
	assert.ErrorIs(t, err, apperrors.ErrUploadFailed)
}

func TestPipeline_NormalizesThenUploads(t *testing.T) {
	var got []byte
	store := images.StoreFunc(func(_ context.Context, data []byte) (string, error) {
		got = data
		return "https://cdn.example.com/p.jpg", nil
	})
	p := images.NewPipeline(images.NewNormalizer(), store, quietLog)

	url, err := p.Process(context.Background(), "image/png", encodePNG(t, 1200, 800))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/p.jpg", url)

	w, h, format := dimensions(t, got)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 600, w)
	assert.Equal(t, 400, h)
}

func TestPipeline_RejectedImageIsNeverUploaded(t *testing.T) {
	var calls int32
	store := images.StoreFunc(func(context.Context, []byte) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", nil
	})
	p := images.NewPipeline(images.NewNormalizer(), store, quietLog)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8000, 5001))))
	_, err := p.Process(context.Background(), "image/png", buf.Bytes())
	assert.ErrorIs(t, err, apperrors.ErrPayloadTooLarge)

	_, err = p.Process(context.Background(), "text/plain", []byte("hello"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedMediaType)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestPipeline_CancelledBeforeDecode(t *testing.T) {
	store := images.StoreFunc(func(context.Context, []byte) (string, error) {
		t.Fatal("store must not be called")
		return "", nil
	})
	p := images.NewPipeline(images.NewNormalizer(), store, quietLog)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, "image/png", encodePNG(t, 50, 50))
	assert.ErrorIs(t, err, apperrors.ErrUploadFailed)
	assert.ErrorIs(t, err, context.Canceled)
}
