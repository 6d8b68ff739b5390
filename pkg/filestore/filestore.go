// Package filestore implements the content-addressed blob store behind
// Effis: deduplicated uploads, on-demand thumbnails and the URL proxy.
package filestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/gif"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // webp decoding for sniffed dimensions

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/models"
	"github.com/eludris/eludris/pkg/store"
)

// resizeSizes is the allow-list of thumbnail edge lengths.
var resizeSizes = map[int]bool{256: true}

// proxyTypes is the allow-list of content types the URL proxy will relay.
var proxyTypes = map[string]bool{
	"image/gif":       true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

// Service is the file store. Blobs live at {root}/{bucket}/{file_id}, with
// derived thumbnails beside them at {path}-{size}.
type Service struct {
	root   string
	db     *store.Store
	client *http.Client
}

// New creates a file store rooted at root, creating the bucket directories.
func New(root string, db *store.Store) (*Service, error) {
	for _, bucket := range []string{
		models.BucketAttachments, models.BucketAvatars, models.BucketBanners,
		models.BucketSphereIcons, models.BucketSphereBanners,
		models.BucketMemberAvatars, models.BucketMemberBanners, models.BucketEmojis,
	} {
		if err := os.MkdirAll(filepath.Join(root, bucket), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create bucket directory: %w", err)
		}
	}
	return &Service{root: root, db: db, client: &http.Client{}}, nil
}

func (s *Service) blobPath(bucket string, fileID uint64) string {
	return filepath.Join(s.root, bucket, strconv.FormatUint(fileID, 10))
}

// Upload stores an incoming file in a bucket, deduplicating against earlier
// uploads with the same content hash. sizeLimit bounds the accepted bytes.
func (s *Service) Upload(ctx context.Context, bucket, name string, r io.Reader, sizeLimit uint64) (models.FileData, error) {
	if !models.ValidBucket(bucket) {
		return models.FileData{}, models.ErrNotFound()
	}
	if len(name) < 1 || len(name) > 256 {
		return models.FileData{}, models.ErrValidation("name", "The file's name must be between 1 and 256 characters in length")
	}

	id := s.db.NewID()
	path := s.blobPath(bucket, id)

	hash, size, err := s.writeBlob(path, r, sizeLimit)
	if err != nil {
		return models.FileData{}, err
	}
	if size == 0 {
		os.Remove(path)
		return models.FileData{}, models.ErrValidation("file", "The file must not be empty")
	}

	contentType, err := sniffContentType(path)
	if err != nil {
		os.Remove(path)
		return models.FileData{}, models.ErrServer("Failed to process file")
	}

	// JPEGs are re-encoded to strip EXIF and other metadata. This happens
	// before the dedup lookup so the stored blob and its hash are canonical
	// and identical uploads always collide.
	if contentType == "image/jpeg" {
		if err := reencodeJPEG(path); err != nil {
			os.Remove(path)
			return models.FileData{}, models.ErrValidation("file", "The file is not a valid image")
		}
		if hash, err = hashFile(path); err != nil {
			os.Remove(path)
			return models.FileData{}, models.ErrServer("Failed to process file")
		}
	}

	// A matching hash in the same bucket means the bytes are already on
	// disk; drop the new blob and alias the earlier one.
	if prior, ok, err := s.db.FindFileByHash(ctx, bucket, hash); err != nil {
		os.Remove(path)
		return models.FileData{}, err
	} else if ok {
		os.Remove(path)
		record := models.File{
			ID:          id,
			FileID:      prior.FileID,
			Name:        name,
			ContentType: prior.ContentType,
			Hash:        hash,
			Bucket:      bucket,
			Width:       prior.Width,
			Height:      prior.Height,
		}
		if err := s.db.InsertFile(ctx, record); err != nil {
			return models.FileData{}, err
		}
		return record.Data(), nil
	}

	record := models.File{
		ID:          id,
		FileID:      id,
		Name:        name,
		ContentType: contentType,
		Hash:        hash,
		Bucket:      bucket,
	}

	switch {
	case strings.HasPrefix(contentType, "image/"):
		width, height, err := imageDimensions(path)
		if err != nil {
			os.Remove(path)
			return models.FileData{}, models.ErrValidation("file", "The file is not a valid image")
		}
		record.Width, record.Height = &width, &height
	case strings.HasPrefix(contentType, "video/"):
		width, height, err := probeVideo(ctx, path)
		if err != nil {
			logger.Warn("failed to probe video dimensions", "path", path, "error", err)
		} else {
			record.Width, record.Height = &width, &height
		}
	default:
		if bucket != models.BucketAttachments {
			os.Remove(path)
			return models.FileData{}, models.ErrValidation("file", "The file must be an image or a video")
		}
	}

	if err := s.db.InsertFile(ctx, record); err != nil {
		os.Remove(path)
		return models.FileData{}, err
	}
	return record.Data(), nil
}

// writeBlob streams r to path, hashing as it goes and rejecting inputs
// larger than sizeLimit.
func (s *Service) writeBlob(path string, r io.Reader, sizeLimit uint64) (string, int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", 0, models.ErrServer("Failed to store file")
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), io.LimitReader(r, int64(sizeLimit)+1))
	if err != nil {
		os.Remove(path)
		return "", 0, models.ErrServer("Failed to store file")
	}
	if n > int64(sizeLimit) {
		os.Remove(path)
		return "", 0, models.ErrValidation("file", "The file is larger than the instance's file size limit")
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Fetch resolves a file and opens its blob, producing the size-derived
// thumbnail when requested. size zero means the original.
func (s *Service) Fetch(ctx context.Context, bucket string, id uint64, size int) (models.File, *os.File, error) {
	if !models.ValidBucket(bucket) {
		return models.File{}, nil, models.ErrNotFound()
	}
	record, err := s.db.GetFile(ctx, bucket, id)
	if err != nil {
		return models.File{}, nil, err
	}
	path := s.blobPath(bucket, record.FileID)

	if size > 0 {
		if !models.ResizableBucket(bucket) || !resizeSizes[size] {
			return models.File{}, nil, models.ErrValidation("size", "Invalid file size")
		}
		if !strings.HasPrefix(record.ContentType, "image/") {
			return models.File{}, nil, models.ErrValidation("size", "Only images can be resized")
		}
		path, err = s.thumbnail(path, record.ContentType, size)
		if err != nil {
			return models.File{}, nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Error("blob missing for file record", "bucket", bucket, "file_id", record.FileID, "error", err)
		return models.File{}, nil, models.ErrServer("Failed to read file")
	}
	return record, f, nil
}

// thumbnail returns the path of the memoized resize, producing it on first
// use. Writers race benignly: output is streamed to a temp name and renamed,
// so readers only ever see complete files.
func (s *Service) thumbnail(path, contentType string, size int) (string, error) {
	resized := fmt.Sprintf("%s-%d", path, size)
	if _, err := os.Stat(resized); err == nil {
		return resized, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".resize-*")
	if err != nil {
		return "", models.ErrServer("Failed to resize file")
	}
	defer os.Remove(tmp.Name())

	if contentType == "image/gif" {
		err = resizeGIF(path, tmp, size)
	} else {
		err = resizeStill(path, tmp, size)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", models.ErrServer("Failed to resize file")
	}
	if err := os.Rename(tmp.Name(), resized); err != nil {
		return "", models.ErrServer("Failed to resize file")
	}
	return resized, nil
}

func resizeStill(path string, w io.Writer, size int) error {
	img, err := imaging.Open(path)
	if err != nil {
		return err
	}
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		format = imaging.PNG
	}
	return imaging.Encode(w, thumb, format)
}

// resizeGIF resizes every frame, preserving delays and the loop count.
func resizeGIF(path string, w io.Writer, size int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	src, err := gif.DecodeAll(f)
	if err != nil {
		return err
	}

	out := &gif.GIF{
		Delay:     src.Delay,
		LoopCount: src.LoopCount,
		Disposal:  src.Disposal,
	}
	for _, frame := range src.Image {
		resized := imaging.Fit(frame, size, size, imaging.Lanczos)
		paletted := image.NewPaletted(resized.Bounds(), frame.Palette)
		for y := resized.Bounds().Min.Y; y < resized.Bounds().Max.Y; y++ {
			for x := resized.Bounds().Min.X; x < resized.Bounds().Max.X; x++ {
				paletted.Set(x, y, resized.At(x, y))
			}
		}
		out.Image = append(out.Image, paletted)
	}
	return gif.EncodeAll(w, out)
}

// Proxy performs a bounded outbound GET and relays the body when its content
// type is on the media allow-list and the size stays under limit.
func (s *Service) Proxy(ctx context.Context, url string, limit uint64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", models.ErrValidation("url", "Invalid URL")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", models.ErrValidation("url", "Failed to fetch URL")
	}
	defer resp.Body.Close()

	contentType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	contentType = strings.TrimSpace(contentType)
	if !proxyTypes[contentType] {
		return nil, "", models.ErrValidation("url", "The URL's content type is not proxyable")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
	if err != nil {
		return nil, "", models.ErrServer("Failed to fetch URL")
	}
	if uint64(len(body)) > limit {
		return nil, "", models.ErrValidation("url", "The URL's content is larger than the instance's proxy size limit")
	}
	return body, contentType, nil
}

// sniffContentType detects the MIME type from the blob's leading bytes.
func sniffContentType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	contentType, _, _ := strings.Cut(http.DetectContentType(buf[:n]), ";")
	return strings.TrimSpace(contentType), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// reencodeJPEG rewrites the blob in place through a decode and encode cycle,
// dropping EXIF and any other ancillary segments. Blob paths carry no
// extension, so the encoder is named explicitly rather than inferred.
func reencodeJPEG(path string) error {
	img, err := imaging.Open(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".reencode-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	err = imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(95))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// probeVideo asks ffprobe for the first video stream's dimensions.
func probeVideo(ctx context.Context, path string) (int, int, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	).Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	dims := strings.Split(strings.TrimSpace(string(bytes.TrimSpace(out))), "x")
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("unexpected ffprobe output %q", out)
	}
	width, err := strconv.Atoi(dims[0])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected ffprobe output %q", out)
	}
	height, err := strconv.Atoi(dims[1])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected ffprobe output %q", out)
	}
	return width, height, nil
}
