package logger

import (
	"encoding/json"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Journal appends audit records as JSON lines.
type Journal struct {
	logger *zap.Logger
}

// NewJournal writes to a rotated file, or to stdout when path is empty.
func NewJournal(path string) *Journal {
	var sink zapcore.WriteSyncer
	if path == "" {
		sink = zapcore.Lock(os.Stdout)
	} else {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}
	return newJournal(sink)
}

// NewJournalWriter is used by tests and tools that own the destination.
func NewJournalWriter(w io.Writer) *Journal {
	return newJournal(zapcore.AddSync(w))
}

func newJournal(sink zapcore.WriteSyncer) *Journal {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "topic"
	encoderConfig.LevelKey = ""
	encoderConfig.CallerKey = ""

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, zap.InfoLevel)
	return &Journal{logger: zap.New(core)}
}

// Record appends one audit entry. Payload must be a JSON document.
func (j *Journal) Record(topic, eventID string, payload []byte) {
	if j == nil || j.logger == nil {
		return
	}
	fields := []zap.Field{zap.String("event_id", eventID)}
	if json.Valid(payload) {
		fields = append(fields, zap.Any("payload", json.RawMessage(payload)))
	} else {
		fields = append(fields, zap.ByteString("payload_raw", payload))
	}
	j.logger.Info(topic, fields...)
}

// Sync flushes buffered entries.
func (j *Journal) Sync() error {
	if j == nil || j.logger == nil {
		return nil
	}
	return j.logger.Sync()
}
