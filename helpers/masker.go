package helpers

import "strings"

// MaskSensitive redacts credentials from a POP3 command line before it is logged.
//
//	PASS <pass>            -> PASS [REDACTED]
//	APOP <user> <digest>   -> APOP <user> [REDACTED]
//	AUTH <mech> <response> -> AUTH <mech> [REDACTED]
//
// Other commands are returned unchanged.
func MaskSensitive(line string) string {
	parts := strings.Fields(line)
	if len(parts) < 1 {
		return line
	}

	var partsToKeepCount int
	switch strings.ToUpper(parts[0]) {
	case "PASS":
		partsToKeepCount = 1
	case "APOP", "AUTH":
		partsToKeepCount = 2
	default:
		return line
	}

	if len(parts) > partsToKeepCount {
		return strings.Join(parts[:partsToKeepCount], " ") + " [REDACTED]"
	}

	// e.g. "AUTH PLAIN" where the data comes on the next line.
	return line
}
