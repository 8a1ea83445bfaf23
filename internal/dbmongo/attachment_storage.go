package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrUnsupportedAttachment is returned for uploads that are not images.
var ErrUnsupportedAttachment = errors.New("only image attachments are supported")

// AttachmentStorage stores message image attachments in GridFS. The
// attachment id ends up inside the message's attachment URL.
type AttachmentStorage struct {
	gridFS *gridfs.Bucket
}

func NewAttachmentStorage(mongoClient *MongoClient) *AttachmentStorage {
	return &AttachmentStorage{
		gridFS: mongoClient.GridFS,
	}
}

type Attachment struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (as *AttachmentStorage) Upload(ctx context.Context, filename, mimeType, uploaderID string, content io.Reader) (*Attachment, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, ErrUnsupportedAttachment
	}

	metadata := bson.M{
		"mime_type":   mimeType,
		"uploaded_by": uploaderID,
		"uploaded_at": time.Now(),
	}

	opts := options.GridFSUpload().SetMetadata(metadata)
	stream, err := as.gridFS.OpenUploadStream(filename, opts)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer stream.Close()

	size, err := io.Copy(stream, content)
	if err != nil {
		return nil, fmt.Errorf("file copy failed: %w", err)
	}

	return &Attachment{
		ID:         stream.FileID.(primitive.ObjectID).Hex(),
		Filename:   filename,
		Size:       size,
		MimeType:   mimeType,
		UploadedBy: uploaderID,
		UploadedAt: time.Now(),
	}, nil
}

func (as *AttachmentStorage) Download(ctx context.Context, attachmentID string) (io.Reader, *Attachment, error) {
	objectID, err := primitive.ObjectIDFromHex(attachmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid attachment ID: %w", err)
	}

	stream, err := as.gridFS.OpenDownloadStream(objectID)
	if err != nil {
		return nil, nil, fmt.Errorf("download failed: %w", err)
	}

	fileInfo := stream.GetFile()
	var metadata bson.M
	if fileInfo.Metadata != nil {
		bson.Unmarshal(fileInfo.Metadata, &metadata)
	}

	attachment := &Attachment{
		ID:         attachmentID,
		Filename:   fileInfo.Name,
		Size:       fileInfo.Length,
		MimeType:   getStringFromMap(metadata, "mime_type"),
		UploadedBy: getStringFromMap(metadata, "uploaded_by"),
		UploadedAt: fileInfo.UploadDate,
	}

	return stream, attachment, nil
}

func (as *AttachmentStorage) Delete(ctx context.Context, attachmentID string) error {
	objectID, err := primitive.ObjectIDFromHex(attachmentID)
	if err != nil {
		return fmt.Errorf("invalid attachment ID: %w", err)
	}
	return as.gridFS.Delete(objectID)
}

func getStringFromMap(m bson.M, key string) string {
	if m == nil {
		return ""
	}
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
