package errors

// Common error codes
const (
	// Configuration
	ErrInvalidConfig ErrorCode = "invalid_configuration"
	ErrReadConfig    ErrorCode = "read_config_failed"

	// Lifecycle
	ErrInitFailed   ErrorCode = "initialization_failed"
	ErrInvalidState ErrorCode = "invalid_state"

	// Transport
	ErrConnectionFailure    ErrorCode = "connection_failure"
	ErrSerializationFailure ErrorCode = "serialization_failure"

	// Sensors
	ErrSensorRead ErrorCode = "sensor_read_failed"

	// Storage
	ErrStorageInit  ErrorCode = "storage_init_failed"
	ErrStorageWrite ErrorCode = "storage_write_failed"
	ErrStorageRead  ErrorCode = "storage_read_failed"
	ErrStorageClose ErrorCode = "storage_close_failed"
)

var errorMessages = map[ErrorCode]string{
	ErrInvalidConfig:        "Invalid configuration",
	ErrReadConfig:           "Failed to read configuration",
	ErrInitFailed:           "Initialization failed",
	ErrInvalidState:         "Invalid state for operation",
	ErrConnectionFailure:    "Connection failure",
	ErrSerializationFailure: "Failed to serialize payload",
	ErrSensorRead:           "Failed to read sensor",
	ErrStorageInit:          "Failed to initialize storage",
	ErrStorageWrite:         "Failed to write to storage",
	ErrStorageRead:          "Failed to read from storage",
	ErrStorageClose:         "Failed to close storage",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return string(code)
}
