package core

// Logger is implemented by services/logger.
// expected args: error, map[string]interface{}, ClientID
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// ClientID is the opaque per-installation identifier every record set is scoped by.
// It is never parsed.
type ClientID string
