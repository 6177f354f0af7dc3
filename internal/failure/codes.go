package failure

// Category groups error codes by origin.
type Category string

const (
	CategoryNetwork      Category = "NETWORK"
	CategoryAPI          Category = "API"
	CategoryResource     Category = "RESOURCE"
	CategoryInput        Category = "INPUT"
	CategoryProcessing   Category = "PROCESSING"
	CategorySystem       Category = "SYSTEM"
	CategoryCancellation Category = "CANCELLATION"
	CategoryUnknown      Category = "UNKNOWN"
)

// Code identifies a classified failure.
type Code string

const (
	CodeNetworkTimeout     Code = "NETWORK_TIMEOUT"
	CodeConnectionRefused  Code = "CONNECTION_REFUSED"
	CodeNetworkUnavailable Code = "NETWORK_UNAVAILABLE"

	CodeRateLimited   Code = "RATE_LIMITED"
	CodeAPIKeyInvalid Code = "API_KEY_INVALID"
	CodeAPIKeyMissing Code = "API_KEY_MISSING"
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"
	CodeModelNotFound Code = "MODEL_NOT_FOUND"

	CodeInsufficientMemory Code = "INSUFFICIENT_MEMORY"
	CodeDiskFull           Code = "DISK_FULL"

	CodePrivateVideo     Code = "PRIVATE_VIDEO"
	CodeAgeRestricted    Code = "AGE_RESTRICTED"
	CodeRegionBlocked    Code = "REGION_BLOCKED"
	CodeVideoUnavailable Code = "VIDEO_UNAVAILABLE"
	CodeLiveStream       Code = "LIVE_STREAM"
	CodeVideoTooShort    Code = "VIDEO_TOO_SHORT"
	CodeVideoTooLong     Code = "VIDEO_TOO_LONG"
	CodeInvalidInput     Code = "INVALID_INPUT"

	CodeEncodingFailed   Code = "ENCODING_FAILED"
	CodeProcessingFailed Code = "PROCESSING_FAILED"

	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeBinaryNotFound    Code = "BINARY_NOT_FOUND"
	CodeOutputPathInvalid Code = "OUTPUT_PATH_INVALID"

	CodeCancelled Code = "CANCELLED"
	CodeUnknown   Code = "UNKNOWN"
)

type codeInfo struct {
	category    Category
	recoverable bool
	retryable   bool
	message     string
	suggestion  string
}

var catalog = map[Code]codeInfo{
	CodeNetworkTimeout: {CategoryNetwork, true, true,
		"The network request timed out",
		"Check your internet connection; the request will be retried automatically."},
	CodeConnectionRefused: {CategoryNetwork, true, true,
		"The remote service refused the connection",
		"Verify the service address and that it is running, then try again."},
	CodeNetworkUnavailable: {CategoryNetwork, true, true,
		"The network is unavailable",
		"Check your internet connection and DNS settings."},
	CodeRateLimited: {CategoryAPI, true, true,
		"The service is rate limiting requests",
		"Wait a moment before retrying or lower the request rate."},
	CodeAPIKeyInvalid: {CategoryAPI, false, false,
		"The API key was rejected",
		"Update translation.api_key (or OPENROUTER_API_KEY) with a valid key."},
	CodeAPIKeyMissing: {CategoryAPI, false, false,
		"No API key is configured",
		"Set translation.api_key in the config file or export OPENROUTER_API_KEY."},
	CodeQuotaExceeded: {CategoryAPI, false, false,
		"The API quota or credit balance is exhausted",
		"Add credits or raise the quota for the translation provider account."},
	CodeModelNotFound: {CategoryAPI, false, false,
		"The requested model does not exist",
		"Check the model name in the config file."},
	CodeInsufficientMemory: {CategoryResource, true, false,
		"Not enough memory to continue",
		"Close other applications or choose a smaller transcription model."},
	CodeDiskFull: {CategoryResource, false, false,
		"The disk is full",
		"Free disk space in the work and output directories, then resume the job."},
	CodePrivateVideo: {CategoryInput, false, false,
		"The video is private",
		"Ask the owner to make the video public or unlisted."},
	CodeAgeRestricted: {CategoryInput, false, false,
		"The video is age restricted",
		"Age restricted videos require signed-in cookies; configure download.cookies_file."},
	CodeRegionBlocked: {CategoryInput, false, false,
		"The video is not available in your region",
		"Try again from a region where the video is available."},
	CodeVideoUnavailable: {CategoryInput, false, false,
		"The video is unavailable",
		"Check that the URL is correct and the video has not been removed."},
	CodeLiveStream: {CategoryInput, false, false,
		"Live streams cannot be processed",
		"Wait until the stream has ended and the recording is available."},
	CodeVideoTooShort: {CategoryInput, false, false,
		"The video is too short",
		"Choose a longer video or lower preflight.min_duration_seconds."},
	CodeVideoTooLong: {CategoryInput, false, false,
		"The video is too long",
		"Choose a shorter video or raise preflight.max_duration_seconds."},
	CodeInvalidInput: {CategoryInput, false, false,
		"The job request is invalid",
		"Check the source URL, languages, and output options."},
	CodeEncodingFailed: {CategoryProcessing, true, true,
		"Media encoding failed",
		"A different format or encoder will be tried automatically."},
	CodeProcessingFailed: {CategoryProcessing, true, true,
		"A tool produced unusable output",
		"The step will be retried with the next available option."},
	CodePermissionDenied: {CategorySystem, false, false,
		"Permission denied",
		"Check ownership and permissions of the work and output directories."},
	CodeBinaryNotFound: {CategorySystem, false, false,
		"A required tool is not installed",
		"Run `lingocast deps` to see which tools are missing."},
	CodeOutputPathInvalid: {CategorySystem, false, false,
		"The output location cannot be used",
		"Choose a writable output directory."},
	CodeCancelled: {CategoryCancellation, false, false,
		"The job was cancelled",
		"Resume the job later with `lingocast resume`."},
	CodeUnknown: {CategoryUnknown, false, false,
		"An unexpected error occurred",
		"Check the log output for details and report the problem if it persists."},
}

func infoFor(code Code) codeInfo {
	if info, ok := catalog[code]; ok {
		return info
	}
	return catalog[CodeUnknown]
}

// Category returns the category the code belongs to.
func (c Code) Category() Category { return infoFor(c).category }

// Known reports whether the code is part of the catalog.
func (c Code) Known() bool {
	_, ok := catalog[c]
	return ok
}
