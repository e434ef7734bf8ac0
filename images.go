package bulletin

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/image/draw"

	"github.com/eringen/bulletin/content"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB

	// An embedded video is base64 encoded into the synced document, which
	// grows it by a third. Half the document limit leaves room for the
	// encoding and the gallery.
	maxVideoSize = content.MaxDocumentSize / 2
)

var errNotVideo = errors.New("file is not a video")

// processImage decodes an image from src, resizes it to maxImageWidth when
// wider, and encodes it as JPEG.
func processImage(src io.Reader) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// imageDataURI turns an uploaded image into a self-contained JPEG data URI
// so gallery entries carry their own bytes.
func imageDataURI(src io.Reader) (string, error) {
	data, err := processImage(io.LimitReader(src, maxUploadSize))
	if err != nil {
		return "", err
	}
	return DataURI("image/jpeg", data), nil
}

// videoFromUpload reads an uploaded video into an embedded Video. The
// declared content type is used when it names a video, otherwise the
// bytes are sniffed.
func videoFromUpload(src io.Reader, declared string) (content.Video, error) {
	data, err := io.ReadAll(io.LimitReader(src, maxVideoSize+1))
	if err != nil {
		return content.Video{}, fmt.Errorf("read video: %w", err)
	}
	if len(data) == 0 {
		return content.Video{}, errNotVideo
	}
	if len(data) > maxVideoSize {
		return content.Video{}, fmt.Errorf("video larger than %d bytes", maxVideoSize)
	}
	mediaType := ""
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			mediaType = mt
		}
	}
	if !strings.HasPrefix(mediaType, "video/") {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	if !strings.HasPrefix(mediaType, "video/") {
		return content.Video{}, errNotVideo
	}
	return content.NewVideo(DataURI(mediaType, data), content.VideoEmbedded), nil
}

// DataURI encodes data as a base64 data URI of the given media type.
func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
