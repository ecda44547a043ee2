package utils

// MaskToken shortens a credential for log output, keeping only a recognizable
// prefix. Empty input stays empty so callers can log "absent" distinctly.
func MaskToken(tok string) string {
	if tok == "" {
		return ""
	}
	if len(tok) <= 8 {
		return "***"
	}
	return tok[:8] + "..."
}
