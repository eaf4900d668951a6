package logger

// RedactValue masks a personal value for safe logging, keeping just enough
// to correlate log lines with source rows. "WA000123456" becomes
// "WA***456"; values of 4 characters or fewer are fully masked.
func RedactValue(v string) string {
	if len(v) <= 4 {
		return "***"
	}
	return v[:2] + "***" + v[len(v)-3:]
}
