package errors

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/aws/smithy-go"
)

// Coder is implemented by raw transport failures that carry a stable
// identifier. smithy.APIError satisfies it, as do test doubles.
type Coder interface {
	ErrorCode() string
}

// kindByCode maps raw-error identifiers to their kind. Identifiers not in
// the table classify as KindStorage.
var kindByCode = map[string]ErrorKind{
	// Not found
	"NoSuchKey":    KindNotFound,
	"NoSuchBucket": KindNotFound,
	"NoSuchUpload": KindNotFound,
	"NotFound":     KindNotFound,

	// Payload too large
	"EntityTooLarge":           KindTooLarge,
	"PayloadTooLarge":          KindTooLarge,
	"MaxMessageLengthExceeded": KindTooLarge,

	// Client-side request problems
	"InvalidRequest":       KindValidation,
	"InvalidArgument":      KindValidation,
	"MalformedInput":       KindValidation,
	"MalformedXML":         KindValidation,
	"InvalidObjectName":    KindValidation,
	"MissingContentLength": KindValidation,

	// Unsupported payloads
	"UnsupportedMediaType": KindUnsupportedType,
	"UnsupportedType":      KindUnsupportedType,

	// Transient transport failures
	"RequestTimeout":     KindNetwork,
	"ServiceUnavailable": KindNetwork,
	"ConnectionError":    KindNetwork,
	"CircuitOpen":        KindNetwork,

	// Throttling
	"Throttling":           KindQuotaExceeded,
	"ThrottlingException":  KindQuotaExceeded,
	"TooManyRequests":      KindQuotaExceeded,
	"RequestLimitExceeded": KindQuotaExceeded,
	"SlowDown":             KindQuotaExceeded,
	"QuotaExceeded":        KindQuotaExceeded,

	// Permission problems
	"AccessDenied":          KindSecurity,
	"Forbidden":             KindSecurity,
	"InvalidAccessKeyId":    KindSecurity,
	"SignatureDoesNotMatch": KindSecurity,
	"ExpiredToken":          KindSecurity,

	// Conflicts
	"BucketAlreadyExists":     KindDuplicate,
	"BucketAlreadyOwnedByYou": KindDuplicate,
	"EntityAlreadyExists":     KindDuplicate,
	"ObjectAlreadyExists":     KindDuplicate,

	// Environmental
	"ServiceMaintenance":   KindMaintenance,
	"Maintenance":          KindMaintenance,
	"InvalidConfiguration": KindConfiguration,
}

// KindForCode resolves a raw-error identifier to its kind, falling back
// to KindStorage for anything unrecognized.
func KindForCode(code string) ErrorKind {
	if kind, ok := kindByCode[code]; ok {
		return kind
	}
	return KindStorage
}

// Classify maps a raw failure from the storage transport into a
// StashError with a stable kind. It is total: every non-nil error maps to
// exactly one kind, with KindStorage as the catch-all. Already-classified
// errors pass through untouched.
func Classify(err error) *StashError {
	if err == nil {
		return nil
	}

	var stashErr *StashError
	if stderrors.As(err, &stashErr) {
		return stashErr
	}

	// Context expiry and socket timeouts are transient.
	if stderrors.Is(err, context.DeadlineExceeded) {
		return New(KindNetwork, "operation deadline exceeded").WithCause(err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return New(KindNetwork, "network timeout: "+netErr.Error()).WithCause(err)
	}

	// S3 and other AWS failures surface through smithy.APIError; anything
	// else carrying a code (test doubles, the in-memory store) matches
	// the same table.
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		message := apiErr.ErrorMessage()
		if message == "" {
			message = err.Error()
		}
		return New(KindForCode(apiErr.ErrorCode()), message).WithCause(err)
	}
	var coded Coder
	if stderrors.As(err, &coded) {
		return New(KindForCode(coded.ErrorCode()), err.Error()).WithCause(err)
	}

	return New(KindStorage, err.Error()).WithCause(err)
}
