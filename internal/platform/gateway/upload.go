package gateway

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync/atomic"
)

// UploadFile is one part of a multipart upload. Size must be exact: the
// request is sent with a precomputed Content-Length so progress can be
// expressed as a percentage.
type UploadFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// ProgressFunc receives the number of body bytes handed to the transport so
// far and the total body size.
type ProgressFunc func(sent, total int64)

// Upload posts files as multipart/form-data under field and decodes the
// response into out.
func (c *Client) Upload(ctx context.Context, path, field string, files []UploadFile, progress ProgressFunc, out any) error {
	if len(files) == 0 {
		return fmt.Errorf("upload %s: no files", path)
	}

	boundary := multipart.NewWriter(io.Discard).Boundary()
	total, err := multipartSize(boundary, field, files)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}

	pr, pw := io.Pipe()
	go func() {
		mw := multipart.NewWriter(pw)
		_ = mw.SetBoundary(boundary)
		for _, f := range files {
			part, err := mw.CreateFormFile(field, f.Name)
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			n, err := io.Copy(part, f.Reader)
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if n != f.Size {
				pw.CloseWithError(fmt.Errorf("file %s: read %d bytes, declared %d", f.Name, n, f.Size))
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()

	body := &countingReader{r: pr, total: total, progress: progress}
	resp, err := c.send(ctx, http.MethodPost, path, nil, body, "multipart/form-data; boundary="+boundary, total)
	// Unblock the writer goroutine if the transport stopped reading early.
	pr.Close()
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if progress != nil {
		progress(total, total)
	}
	return c.decode(path, resp, out)
}

// multipartSize computes the exact encoded size by writing the multipart
// framing without payloads.
func multipartSize(boundary, field string, files []UploadFile) (int64, error) {
	var cw countingWriter
	mw := multipart.NewWriter(&cw)
	if err := mw.SetBoundary(boundary); err != nil {
		return 0, err
	}
	var payload int64
	for _, f := range files {
		if f.Size < 0 {
			return 0, fmt.Errorf("file %s: unknown size", f.Name)
		}
		if _, err := mw.CreateFormFile(field, f.Name); err != nil {
			return 0, err
		}
		payload += f.Size
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}
	return cw.n + payload, nil
}

type countingWriter struct{ n int64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

type countingReader struct {
	r        io.Reader
	sent     atomic.Int64
	total    int64
	progress ProgressFunc
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 && r.progress != nil {
		r.progress(r.sent.Add(int64(n)), r.total)
	}
	return n, err
}
