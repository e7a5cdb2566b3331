package share

import "fmt"

// StatusError maps an operation failure to the HTTP status and detail
// message disclosed to the client.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return e.Detail
}

// IntegrityError reports ciphertext that decrypted cleanly but hashed to
// something other than the stored sha256. The upload is kept on disk for
// investigation.
type IntegrityError struct {
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed: expected %s, actual %s", e.Expected, e.Actual)
}

// Client-facing detail messages.
const (
	detailNotFoundOrExpired = "File not found or link expired"
	detailLimitReached      = "Download limit has been reached"
	detailMissingKey        = "Error retrieving security key"
	detailFileMissing       = "File does not exist on the server"
	detailDecryptFailed     = "Security error processing file"
	detailUploadNotFound    = "Upload not found or link expired"
	detailAlreadyPreviewed  = "This file preview has already been accessed and is no longer available for security reasons"
	detailInvalidFilename   = "Invalid filename"
)
