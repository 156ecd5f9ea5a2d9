package host

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// core is a zapcore.Core that renders entries as single console lines and
// hands them to the bridge.
type core struct {
	zapcore.LevelEnabler
	bridge *Bridge
	enc    zapcore.Encoder
}

func newCore(b *Bridge, enab zapcore.LevelEnabler) zapcore.Core {
	return &core{
		LevelEnabler: enab,
		bridge:       b,
		enc: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			NameKey:          "logger",
			MessageKey:       "msg",
			EncodeName:       zapcore.FullNameEncoder,
			EncodeDuration:   zapcore.StringDurationEncoder,
			ConsoleSeparator: " ",
		}),
	}
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	clone := &core{
		LevelEnabler: c.LevelEnabler,
		bridge:       c.bridge,
		enc:          c.enc.Clone(),
	}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if !c.bridge.Installed() {
		return nil
	}
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := strings.TrimSuffix(buf.String(), "\n")
	buf.Free()
	return c.bridge.Log(levelFor(ent.Level), msg)
}

func (c *core) Sync() error {
	return nil
}
