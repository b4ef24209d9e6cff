package variables

import (
	"log"
	"os"
)

const (
	LIVEKIT_URL        = "LIVEKIT_URL"
	LIVEKIT_API_KEY    = "LIVEKIT_API_KEY"
	LIVEKIT_API_SECRET = "LIVEKIT_API_SECRET"

	DIAGNOSTICS_HTTP_PORT_NAME    = "DIAGNOSTICS_HTTP_PORT"
	DIAGNOSTICS_HTTP_PORT_DEFAULT = "6061"

	LOG_LEVEL         = "LOG_LEVEL"
	LOG_LEVEL_DEFAULT = "debug"
)

func Env(variableName, defaultValue string) string {
	if variable := os.Getenv(variableName); variable != "" {
		log.Printf("[%s]: %s", variableName, variable)
		return variable
	}
	log.Printf("[%s_DEFAULT]: %s", variableName, defaultValue)
	return defaultValue
}

// Secret never echoes the value into the log.
func Secret(variableName string) string {
	variable := os.Getenv(variableName)
	if variable == "" {
		log.Printf("[%s]: <unset>", variableName)
		return ""
	}
	log.Printf("[%s]: <redacted>", variableName)
	return variable
}
