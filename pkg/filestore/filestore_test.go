package filestore

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eludris/eludris/pkg/models"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestReencodeJPEG(t *testing.T) {
	dir := t.TempDir()

	t.Run("WorksOnExtensionlessBlobPaths", func(t *testing.T) {
		// Blobs are stored under their numeric id, so the encoder must not
		// depend on a filename extension.
		path := filepath.Join(dir, "123456")
		require.NoError(t, os.WriteFile(path, jpegBytes(t, 40, 30), 0o644))

		require.NoError(t, reencodeJPEG(path))

		contentType, err := sniffContentType(path)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", contentType)

		width, height, err := imageDimensions(path)
		require.NoError(t, err)
		assert.Equal(t, 40, width)
		assert.Equal(t, 30, height)
	})

	t.Run("IdenticalInputsShareAHash", func(t *testing.T) {
		// The re-encode is deterministic, so equal uploads keep colliding on
		// their content hash after canonicalization.
		input := jpegBytes(t, 16, 16)
		a := filepath.Join(dir, "1001")
		b := filepath.Join(dir, "1002")
		require.NoError(t, os.WriteFile(a, input, 0o644))
		require.NoError(t, os.WriteFile(b, input, 0o644))

		require.NoError(t, reencodeJPEG(a))
		require.NoError(t, reencodeJPEG(b))

		hashA, err := hashFile(a)
		require.NoError(t, err)
		hashB, err := hashFile(b)
		require.NoError(t, err)
		assert.Equal(t, hashA, hashB)
	})

	t.Run("RejectsNonImageBytes", func(t *testing.T) {
		path := filepath.Join(dir, "2001")
		require.NoError(t, os.WriteFile(path, []byte("not a jpeg"), 0o644))
		assert.Error(t, reencodeJPEG(path))
	})
}

func TestWriteBlob(t *testing.T) {
	svc := &Service{root: t.TempDir()}

	t.Run("HashesAndCounts", func(t *testing.T) {
		path := filepath.Join(svc.root, "blob")
		hash, size, err := svc.writeBlob(path, strings.NewReader("hello"), 1000)
		require.Nil(t, err)

		assert.Equal(t, int64(5), size)
		// sha256("hello")
		assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", hash)

		data, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("SameBytesSameHash", func(t *testing.T) {
		a, _, err := svc.writeBlob(filepath.Join(svc.root, "a"), strings.NewReader("content"), 1000)
		require.Nil(t, err)
		b, _, err := svc.writeBlob(filepath.Join(svc.root, "b"), strings.NewReader("content"), 1000)
		require.Nil(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("RejectsOversizedInput", func(t *testing.T) {
		path := filepath.Join(svc.root, "big")
		_, _, err := svc.writeBlob(path, strings.NewReader("0123456789"), 5)
		require.NotNil(t, err)
		assert.Equal(t, models.ErrorTypeValidation, err.(*models.APIError).Type)

		// The partial blob is cleaned up.
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestThumbnail(t *testing.T) {
	svc := &Service{root: t.TempDir()}

	t.Run("ResizesStillImage", func(t *testing.T) {
		path := filepath.Join(svc.root, "pic.png")
		require.NoError(t, os.WriteFile(path, pngBytes(t, 512, 256), 0o644))

		resized, err := svc.thumbnail(path, "image/png", 256)
		require.NoError(t, err)
		assert.Equal(t, path+"-256", resized)

		f, openErr := os.Open(resized)
		require.NoError(t, openErr)
		defer f.Close()
		cfg, _, decodeErr := image.DecodeConfig(f)
		require.NoError(t, decodeErr)
		assert.Equal(t, 256, cfg.Width)
		assert.Equal(t, 128, cfg.Height)
	})

	t.Run("MemoizesTheResize", func(t *testing.T) {
		path := filepath.Join(svc.root, "memo.png")
		require.NoError(t, os.WriteFile(path, pngBytes(t, 512, 512), 0o644))

		first, err := svc.thumbnail(path, "image/png", 256)
		require.NoError(t, err)
		info1, err := os.Stat(first)
		require.NoError(t, err)

		second, err := svc.thumbnail(path, "image/png", 256)
		require.NoError(t, err)
		info2, err := os.Stat(second)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, info1.ModTime(), info2.ModTime())
	})

	t.Run("CorruptImageFails", func(t *testing.T) {
		path := filepath.Join(svc.root, "bad.png")
		require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

		_, err := svc.thumbnail(path, "image/png", 256)
		assert.Error(t, err)
	})
}

func TestProxy(t *testing.T) {
	ctx := context.Background()
	svc := &Service{root: t.TempDir(), client: &http.Client{}}

	picture := pngBytes(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pic.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(picture)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		}
	}))
	defer srv.Close()

	t.Run("RelaysAllowedMedia", func(t *testing.T) {
		body, contentType, err := svc.Proxy(ctx, srv.URL+"/pic.png", 1<<20)
		require.Nil(t, err)
		assert.Equal(t, "image/png", contentType)
		assert.Equal(t, picture, body)
	})

	t.Run("RejectsDisallowedContentType", func(t *testing.T) {
		_, _, err := svc.Proxy(ctx, srv.URL+"/page.html", 1<<20)
		require.NotNil(t, err)
		assert.Equal(t, models.ErrorTypeValidation, models.AsAPIError(err).Type)
	})

	t.Run("RejectsOversizedBody", func(t *testing.T) {
		_, _, err := svc.Proxy(ctx, srv.URL+"/pic.png", 4)
		assert.NotNil(t, err)
	})

	t.Run("RejectsUnreachableURL", func(t *testing.T) {
		_, _, err := svc.Proxy(ctx, "http://127.0.0.1:1/nothing", 1<<20)
		assert.NotNil(t, err)
	})
}

func TestSniffContentType(t *testing.T) {
	dir := t.TempDir()

	t.Run("PNG", func(t *testing.T) {
		path := filepath.Join(dir, "pic")
		require.NoError(t, os.WriteFile(path, pngBytes(t, 4, 4), 0o644))

		contentType, err := sniffContentType(path)
		require.NoError(t, err)
		assert.Equal(t, "image/png", contentType)
	})

	t.Run("PlainText", func(t *testing.T) {
		path := filepath.Join(dir, "text")
		require.NoError(t, os.WriteFile(path, []byte("just some words"), 0o644))

		contentType, err := sniffContentType(path)
		require.NoError(t, err)
		assert.Equal(t, "text/plain", contentType)
	})
}

func TestImageDimensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pic.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 30, 20), 0o644))

	width, height, err := imageDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 30, width)
	assert.Equal(t, 20, height)
}

func TestNewCreatesBucketDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "files")
	_, err := New(root, nil)
	require.NoError(t, err)

	for _, bucket := range []string{models.BucketAttachments, models.BucketAvatars, models.BucketEmojis} {
		info, statErr := os.Stat(filepath.Join(root, bucket))
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	}
}
