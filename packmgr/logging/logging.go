// Package logging implements a transport that delegates everything to a nested transport,
// logging requests as they happen.
package logging

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/bobg/je/packmgr"
)

var _ packmgr.Transport = &Transport{}

type Transport struct {
	t      packmgr.Transport
	logger *zap.Logger
}

func New(t packmgr.Transport, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{t: t, logger: logger}
}

func (t *Transport) Get(ctx context.Context, path string, w io.Writer) (int64, error) {
	start := time.Now()
	n, err := t.t.Get(ctx, path, w)
	fields := []zap.Field{zap.String("path", path), zap.Int64("bytes", n), zap.Duration("elapsed", time.Since(start))}
	if err != nil {
		t.logger.Error("GET", append(fields, zap.Error(err))...)
	} else {
		t.logger.Debug("GET", fields...)
	}
	return n, err
}

func (t *Transport) Post(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	b, err := t.t.Post(ctx, path)
	t.logReply("POST", path, b, time.Since(start), err)
	return b, err
}

func (t *Transport) PostFile(ctx context.Context, path, field, filename string, r io.Reader) ([]byte, error) {
	start := time.Now()
	b, err := t.t.PostFile(ctx, path, field, filename, r)
	t.logReply("POST "+field+"="+filename, path, b, time.Since(start), err)
	return b, err
}

func (t *Transport) logReply(op, path string, reply []byte, elapsed time.Duration, err error) {
	fields := []zap.Field{zap.String("path", path), zap.Duration("elapsed", elapsed)}
	if err != nil {
		t.logger.Error(op, append(fields, zap.Error(err))...)
		return
	}
	t.logger.Debug(op, append(fields, zap.ByteString("reply", reply))...)
}
