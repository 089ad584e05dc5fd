package logger

import (
	"io"
	"time"

	"go.uber.org/zap/zapcore"
)

const sinkFlushInterval = time.Second

// sink buffers rendered lines and fans them out to every output.
// Writes never block on a slow output for longer than one buffer flush.
type sink struct {
	ws *zapcore.BufferedWriteSyncer
}

func newSink(outputs []io.Writer, bufSize int) *sink {
	syncers := make([]zapcore.WriteSyncer, 0, len(outputs))
	for _, w := range outputs {
		if w != nil {
			syncers = append(syncers, zapcore.AddSync(w))
		}
	}
	return &sink{ws: &zapcore.BufferedWriteSyncer{
		WS:            zapcore.NewMultiWriteSyncer(syncers...),
		Size:          bufSize,
		FlushInterval: sinkFlushInterval,
	}}
}

func (s *sink) Write(p []byte) error {
	_, err := s.ws.Write(p)
	return err
}

// Flush pushes buffered lines to the outputs.
func (s *sink) Flush() error {
	return s.ws.Sync()
}

// Close flushes and stops the background flusher.
func (s *sink) Close() error {
	return s.ws.Stop()
}
