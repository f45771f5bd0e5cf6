package wire

import "fmt"

// StatusClass is the top-level outcome tag attached to server-authored
// messages.
type StatusClass uint8

const (
	StatusOk StatusClass = iota
	StatusWarning
	StatusError
)

// Warning codes. Encoded as a 3-byte variant code after the class tag.
type Warning uint8

const (
	WarnSchemaVersionNotExactlyMatched Warning = iota

	warningCount
)

// Error codes. Encoded as a 3-byte variant code after the class tag.
type ErrorCode uint8

const (
	ErrSchemaVersionNotSupported ErrorCode = iota
	ErrBadRequest
	ErrUnimplemented
	ErrUnauthorized
	ErrAuthenticationExpired
	ErrForbidden
	ErrYouAreNotInInstance

	errorCount
)

// Variant byte codes, indexed by enum. Reverse lookup is a linear scan; the
// cardinalities are tiny.
var warningCodes = [warningCount][3]byte{
	WarnSchemaVersionNotExactlyMatched: {0x10, 0x00, 0x00},
}

var errorCodes = [errorCount][3]byte{
	ErrSchemaVersionNotSupported: {0x10, 0x00, 0x00},
	ErrBadRequest:                {0x10, 0x02, 0x00},
	ErrUnimplemented:             {0x10, 0x02, 0x01},
	ErrUnauthorized:              {0x20, 0x00, 0x00},
	ErrAuthenticationExpired:     {0x20, 0x00, 0x01},
	ErrForbidden:                 {0x20, 0x01, 0x00},
	ErrYouAreNotInInstance:       {0x20, 0x02, 0x00},
}

// Status is the tagged outcome attached to every server-authored message.
// Warning and Error are meaningful only for their matching class.
type Status struct {
	Class   StatusClass
	Warning Warning
	Error   ErrorCode
}

// OK returns the success status.
func OK() Status { return Status{Class: StatusOk} }

// Warn returns a warning status.
func Warn(w Warning) Status { return Status{Class: StatusWarning, Warning: w} }

// Err returns an error status.
func Err(e ErrorCode) Status { return Status{Class: StatusError, Error: e} }

// IsOK reports whether the status is Ok or a warning (the request succeeded).
func (s Status) IsOK() bool { return s.Class != StatusError }

func (s Status) String() string {
	switch s.Class {
	case StatusOk:
		return "ok"
	case StatusWarning:
		return fmt.Sprintf("warning(%d)", s.Warning)
	case StatusError:
		return fmt.Sprintf("error(%d)", s.Error)
	default:
		return fmt.Sprintf("status(%d)", s.Class)
	}
}

const (
	statusMinSize = 1
	statusMaxSize = 4
)

func appendStatus(dst []byte, s Status) []byte {
	switch s.Class {
	case StatusOk:
		return append(dst, 0x00)
	case StatusWarning:
		dst = append(dst, 0x01)
		code := warningCodes[s.Warning]
		return append(dst, code[:]...)
	default:
		dst = append(dst, 0x02)
		code := errorCodes[s.Error]
		return append(dst, code[:]...)
	}
}

func parseStatus(buf []byte) (Status, int, error) {
	if len(buf) < statusMinSize {
		return Status{}, 0, errShort
	}
	switch buf[0] {
	case 0x00:
		return OK(), 1, nil
	case 0x01:
		if len(buf) < 4 {
			return Status{}, 0, errShort
		}
		for w, code := range warningCodes {
			if code[0] == buf[1] && code[1] == buf[2] && code[2] == buf[3] {
				return Warn(Warning(w)), 4, nil
			}
		}
		return Status{}, 0, errInvalid
	case 0x02:
		if len(buf) < 4 {
			return Status{}, 0, errShort
		}
		for e, code := range errorCodes {
			if code[0] == buf[1] && code[1] == buf[2] && code[2] == buf[3] {
				return Err(ErrorCode(e)), 4, nil
			}
		}
		return Status{}, 0, errInvalid
	default:
		return Status{}, 0, errInvalid
	}
}
