package models

// Bucket names recognized by the file store.
const (
	BucketAttachments   = "attachments"
	BucketAvatars       = "avatars"
	BucketBanners       = "banners"
	BucketSphereIcons   = "sphere-icons"
	BucketSphereBanners = "sphere-banners"
	BucketMemberAvatars = "member-avatars"
	BucketMemberBanners = "member-banners"
	BucketEmojis        = "emojis"
)

// ValidBucket reports whether name is a recognized bucket.
func ValidBucket(name string) bool {
	switch name {
	case BucketAttachments, BucketAvatars, BucketBanners, BucketSphereIcons,
		BucketSphereBanners, BucketMemberAvatars, BucketMemberBanners, BucketEmojis:
		return true
	}
	return false
}

// ResizableBucket reports whether files in the bucket may be fetched with a
// size parameter.
func ResizableBucket(name string) bool {
	switch name {
	case BucketAvatars, BucketSphereIcons, BucketMemberAvatars, BucketEmojis:
		return true
	}
	return false
}

// FileData is the public metadata for an uploaded file.
//
// ID is the logical handle returned by the upload; FileID is the canonical
// id addressing the on-disk blob. They differ when the upload deduplicated
// against an earlier identical file in the same bucket.
type FileData struct {
	ID       uint64 `json:"id"`
	FileID   uint64 `json:"file_id"`
	Name     string `json:"name"`
	Bucket   string `json:"bucket"`
	Metadata FileMetadata `json:"metadata"`
}

// FileMetadataType buckets a file's sniffed content into a coarse kind.
type FileMetadataType string

const (
	FileMetadataText  FileMetadataType = "TEXT"
	FileMetadataImage FileMetadataType = "IMAGE"
	FileMetadataVideo FileMetadataType = "VIDEO"
	FileMetadataOther FileMetadataType = "OTHER"
)

// FileMetadata carries the sniffed kind and, for media, dimensions.
type FileMetadata struct {
	Type   FileMetadataType `json:"type"`
	Width  *int             `json:"width,omitempty"`
	Height *int             `json:"height,omitempty"`
}

// File is the store-level record for an upload, including fields that never
// reach the wire.
type File struct {
	ID          uint64
	FileID      uint64
	Name        string
	ContentType string
	Hash        string
	Bucket      string
	Width       *int
	Height      *int
}

// Data converts the record to its public shape.
func (f File) Data() FileData {
	md := FileMetadata{Type: FileMetadataOther}
	switch {
	case isImageType(f.ContentType):
		md = FileMetadata{Type: FileMetadataImage, Width: f.Width, Height: f.Height}
	case isVideoType(f.ContentType):
		md = FileMetadata{Type: FileMetadataVideo, Width: f.Width, Height: f.Height}
	case isTextType(f.ContentType):
		md = FileMetadata{Type: FileMetadataText}
	}
	return FileData{
		ID:       f.ID,
		FileID:   f.FileID,
		Name:     f.Name,
		Bucket:   f.Bucket,
		Metadata: md,
	}
}

func isImageType(contentType string) bool {
	switch contentType {
	case "image/gif", "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}

func isVideoType(contentType string) bool {
	switch contentType {
	case "video/mp4", "video/webm", "video/quicktime":
		return true
	}
	return false
}

func isTextType(contentType string) bool {
	return len(contentType) >= 5 && contentType[:5] == "text/"
}
