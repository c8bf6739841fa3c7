package constants

const (
	CtxKeyRequestID = "request_id"
	HeaderRequestID = "X-Request-ID"

	SourceOverpass   = "Overpass API"
	SourceOpenAEDMap = "OpenAEDMap"
	SourceISaveLives = "iSaveLives"

	HeaderAPIKey = "x-api-key"

	EnvPrefix        = "AEDSYNC"
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvISaveLivesKey = "ISAVELIVES_API_KEY"
	DefaultTimezone  = "Europe/Athens"
	ResponseBodySnip = 200
)
