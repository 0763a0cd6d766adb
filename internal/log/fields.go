package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldURL        = "url"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldDomain     = "domain"
	FieldCacheKey   = "cache_key"
	FieldOutcome    = "outcome"
	FieldStoredAt   = "stored_at"
	FieldEntityID   = "entity_id"
	FieldUserID     = "user_id"
	FieldCount      = "count"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentRepository = "repository"
	ComponentCache      = "cache"
	ComponentStorage    = "storage"
	ComponentRemote     = "remote"
	ComponentProbe      = "probe"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentBackend    = "backend"
	ComponentCLI        = "cli"
)

// Operations defines standard operation names
const (
	OpFetch    = "fetch"
	OpGet      = "get"
	OpAdd      = "add"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpClear    = "clear"
	OpRead     = "read"
	OpReadAll  = "read_all"
	OpRefresh  = "refresh"
	OpPatch    = "patch"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeOffline   = "offline"
	ErrorTypeTransport = "transport_error"
	ErrorTypeServer    = "server_error"
	ErrorTypeShape     = "shape_mismatch"
	ErrorTypeCacheMiss = "cache_miss"
	ErrorTypeInternal  = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithCache adds the domain and cache key an operation works on
func (f LogFields) WithCache(domain, key string) LogFields {
	f[FieldDomain] = domain
	f[FieldCacheKey] = key
	return f
}

// WithHTTP adds outbound HTTP call fields
func (f LogFields) WithHTTP(method, url string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldURL] = url
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode > 0 && statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
