package mjpeg

import (
	"fmt"
	"io"
)

const (
	DefaultBoundary    = "frame"
	DefaultContentType = "image/jpeg"
)

// ContentType is the response Content-Type for a stream using boundary.
func ContentType(boundary string) string {
	return "multipart/x-mixed-replace; boundary=" + boundary
}

// WriteRecord writes one multipart part:
//
//	--<boundary>\r\n
//	Content-Type: <type>\r\n
//	Content-Length: <n>\r\n
//	\r\n
//	<data>\r\n
func WriteRecord(w io.Writer, boundary, contentType string, data []byte) error {
	header := fmt.Sprintf("--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n", boundary, contentType, len(data))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
