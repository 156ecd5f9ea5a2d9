package errors

// Status is the numeric result code handed to native callers.
type Status uint32

const (
	StatusSuccess Status = iota
	StatusInvalidName
	StatusNotFound
	StatusLoadFailure
	StatusInvalidSource
	StatusInvalidImage
	StatusUnresolvedReference
	StatusInvalidHandle
	StatusTypeMismatch
	StatusNullReference
	StatusInvalidID
	StatusHostNotInitialized
	StatusUnsupported
	StatusUnknownError
)

var kindStatus = map[Kind]Status{
	KindInvalidName:         StatusInvalidName,
	KindNotFound:            StatusNotFound,
	KindLoadFailure:         StatusLoadFailure,
	KindInvalidSource:       StatusInvalidSource,
	KindInvalidImage:        StatusInvalidImage,
	KindUnresolvedReference: StatusUnresolvedReference,
	KindInvalidHandle:       StatusInvalidHandle,
	KindTypeMismatch:        StatusTypeMismatch,
	KindNullReference:       StatusNullReference,
	KindInvalidID:           StatusInvalidID,
	KindHostNotInitialized:  StatusHostNotInitialized,
	KindUnsupported:         StatusUnsupported,
	KindUnknown:             StatusUnknownError,
}

// StatusOf maps err to a Status. nil is StatusSuccess and errors that did
// not originate here are StatusUnknownError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	if s, ok := kindStatus[KindOf(err)]; ok {
		return s
	}
	return StatusUnknownError
}

// Kind returns the error kind for s, "" for StatusSuccess.
func (s Status) Kind() Kind {
	for k, v := range kindStatus {
		if v == s {
			return k
		}
	}
	if s == StatusSuccess {
		return ""
	}
	return KindUnknown
}

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return string(s.Kind())
}
