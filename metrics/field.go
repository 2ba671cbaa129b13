package metrics

// Field names one entry in a Recorder.
type Field int

// Timing fields.
const (
	ClientExecuteTime Field = iota
	RequestMarshallTime
	RequestSigningTime
	CredentialsRequestTime
	HttpRequestTime //nolint:revive // matches the reported metric name
	ResponseProcessingTime
	RetryPauseTime

	// Counter fields.
	RequestCount
	Exception
	ThrottleException
	ThrottledRetryCount
	RetryCapacityConsumed
	RedirectCount
	StatusCode
	HttpClientPoolAvailableCount //nolint:revive // matches the reported metric name
	HttpClientPoolLeasedCount    //nolint:revive // matches the reported metric name
	HttpClientPoolPendingCount   //nolint:revive // matches the reported metric name

	// Property fields.
	ServiceName
	ServiceEndpoint
	OperationName
	RequestType
	RequestID
	RedirectLocation
	InvocationID

	fieldCount
)

var fieldNames = [fieldCount]string{
	ClientExecuteTime:            "ClientExecuteTime",
	RequestMarshallTime:          "RequestMarshallTime",
	RequestSigningTime:           "RequestSigningTime",
	CredentialsRequestTime:       "CredentialsRequestTime",
	HttpRequestTime:              "HttpRequestTime",
	ResponseProcessingTime:       "ResponseProcessingTime",
	RetryPauseTime:               "RetryPauseTime",
	RequestCount:                 "RequestCount",
	Exception:                    "Exception",
	ThrottleException:            "ThrottleException",
	ThrottledRetryCount:          "ThrottledRetryCount",
	RetryCapacityConsumed:        "RetryCapacityConsumed",
	RedirectCount:                "RedirectCount",
	StatusCode:                   "StatusCode",
	HttpClientPoolAvailableCount: "HttpClientPoolAvailableCount",
	HttpClientPoolLeasedCount:    "HttpClientPoolLeasedCount",
	HttpClientPoolPendingCount:   "HttpClientPoolPendingCount",
	ServiceName:                  "ServiceName",
	ServiceEndpoint:              "ServiceEndpoint",
	OperationName:                "OperationName",
	RequestType:                  "RequestType",
	RequestID:                    "RequestID",
	RedirectLocation:             "RedirectLocation",
	InvocationID:                 "InvocationID",
}

// String returns the field's reported name.
func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "Unknown"
	}
	return fieldNames[f]
}

// IsTimer reports whether the field holds durations.
func (f Field) IsTimer() bool {
	return f >= ClientExecuteTime && f <= RetryPauseTime
}

// IsCounter reports whether the field holds an integer value.
func (f Field) IsCounter() bool {
	return f >= RequestCount && f <= HttpClientPoolPendingCount
}

// TimerFields lists every timing field in declaration order.
func TimerFields() []Field {
	return fieldRange(ClientExecuteTime, RetryPauseTime)
}

// CounterFields lists every counter field in declaration order.
func CounterFields() []Field {
	return fieldRange(RequestCount, HttpClientPoolPendingCount)
}

func fieldRange(from, to Field) []Field {
	out := make([]Field, 0, to-from+1)
	for f := from; f <= to; f++ {
		out = append(out, f)
	}
	return out
}
