package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// Room for multipart boundaries and headers on top of the file itself.
const multipartOverhead = 1 << 20

// FormFields are the multipart field names an image is accepted under, in order.
var FormFields = []string{"image", "file"}

// ReadImage reads the uploaded image from a multipart request. The first
// non-empty file under FormFields wins, so a form with both an upload and a
// camera input works whichever one was filled. A request without a file
// yields an empty Image, which SelectFile rejects as missing.
// Files at or above maxBytes are truncated to maxBytes so SelectFile rejects
// them without the whole file being buffered.
func ReadImage(w http.ResponseWriter, r *http.Request, maxBytes int64) (Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mberr *http.MaxBytesError
		if errors.As(err, &mberr) {
			return Image{}, Reject(TooLarge(maxBytes))
		}
		return Image{}, fmt.Errorf("error parsing multipart form: %w", err)
	}

	for _, field := range FormFields {
		for _, header := range r.MultipartForm.File[field] {
			if header.Size == 0 {
				continue
			}
			return readPart(field, header, maxBytes)
		}
	}

	return Image{}, nil
}

func readPart(field string, header *multipart.FileHeader, maxBytes int64) (Image, error) {
	file, err := header.Open()
	if err != nil {
		return Image{}, fmt.Errorf("error reading form file '%s': %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes))
	if err != nil {
		return Image{}, fmt.Errorf("error reading form file '%s': %w", field, err)
	}

	return Image{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
