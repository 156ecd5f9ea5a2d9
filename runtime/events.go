package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/scripthost/resource"
)

type eventLogger struct {
	log *zap.Logger
}

func (l *eventLogger) OnResourceEvent(e resource.Event) {
	if ce := l.log.Check(zap.DebugLevel, "handle "+e.Type.String()); ce != nil {
		ce.Write(
			zap.Stringer("handle", e.Handle),
			zap.Stringer("owner", e.Owner),
			zap.String("type", e.TypeName),
		)
	}
}
