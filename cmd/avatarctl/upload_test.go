package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avatar-uploader/internal/storage"
	"avatar-uploader/internal/widget"
)

type stubUploader struct {
	location string
	err      error
	block    bool
}

func (s *stubUploader) Upload(ctx context.Context, req storage.UploadRequest, progress storage.ProgressFunc) (string, error) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return "", err
	}
	progress(int64(len(data))/2, req.Size)
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	progress(int64(len(data)), req.Size)
	if s.err != nil {
		return "", s.err
	}
	return s.location + req.Key, nil
}

func quietConfig() widget.Config {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return widget.Config{Bucket: "avatars", Logger: logger}
}

func gif() widget.File {
	return widget.File{Name: "me.gif", ContentType: "image/gif", Data: []byte("GIF89a....")}
}

func TestRunUploadSuccess(t *testing.T) {
	var out bytes.Buffer
	loc, err := runUpload(context.Background(), &out, &stubUploader{location: "https://cdn/"}, quietConfig(), gif())
	require.NoError(t, err)
	assert.Regexp(t, `^https://cdn/\d+-me\.gif$`, loc)
	assert.Contains(t, out.String(), "100%")
}

func TestRunUploadFailure(t *testing.T) {
	var out bytes.Buffer
	_, err := runUpload(context.Background(), &out, &stubUploader{err: errors.New("slow down")}, quietConfig(), gif())
	require.Error(t, err)
	assert.Equal(t, "slow down", err.Error())
}

func TestRunUploadRejectsNonImage(t *testing.T) {
	var out bytes.Buffer
	file := widget.File{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hi")}
	_, err := runUpload(context.Background(), &out, &stubUploader{}, quietConfig(), file)
	var verr *widget.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, widget.RejectedTypeMessage, err.Error())
}

func TestRunUploadCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	_, err := runUpload(ctx, &out, &stubUploader{block: true}, quietConfig(), gif())
	assert.ErrorIs(t, err, errCancelled)
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "avatar")
	require.NoError(t, os.WriteFile(path, []byte("GIF89a\x01\x00\x01\x00"), 0o600))

	f, err := readImage(path, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "avatar", f.Name)
	assert.Equal(t, "image/gif", f.ContentType)

	f, err = readImage(path, "IMAGE/PNG", 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.ContentType)

	_, err = readImage(path, "", 4)
	assert.Error(t, err)

	_, err = readImage(dir, "", 0)
	assert.Error(t, err)
}

func TestRenderProgress(t *testing.T) {
	var out bytes.Buffer
	renderProgress(&out, 50)
	assert.Equal(t, "\r[###############...............]  50%", out.String())

	out.Reset()
	renderProgress(&out, 150)
	assert.Contains(t, out.String(), "[##############################] 150%")
}
