// Package client runs typed service calls through the request pipeline:
// marshal, sign, dispatch, classify, retry and report metrics.
//
// # Quick Start
//
// Build the shared parameters once and create a handler from them:
//
//	params, err := client.NewHandlerParams(
//	    client.WithEndpoint("https://orders.example.com"),
//	    client.WithServiceName("orders"),
//	    client.WithCredentials(auth.NewStaticProvider(id, secret, "")),
//	    client.WithSigner(auth.NewHMACSigner("eu-west-1", "orders")),
//	)
//	if err != nil {
//	    return err
//	}
//	h := client.NewHandler(params)
//
// Then execute calls with a marshaller and response handlers:
//
//	out, err := client.Execute(ctx, h, client.ExecutionParams[GetOrderInput, Order]{
//	    Input:                input,
//	    Marshaller:           client.JSONMarshaller[GetOrderInput](http.MethodPost, "/orders", "GetOrder"),
//	    ResponseHandler:      client.JSONResponseHandler[Order](),
//	    ErrorResponseHandler: client.JSONErrorResponseHandler("orders"),
//	})
//
// # Asynchronous Calls
//
// An AsyncHandler dispatches through an AsyncTransport and returns a Future.
// Backoff between attempts is scheduled with a timer; no goroutine waits
// for it. Cancelling the Future aborts the in-flight attempt:
//
//	f := client.ExecuteAsync(ctx, client.NewAsyncHandler(params), p)
//	defer f.Cancel()
//	out, err := f.Await(ctx)
//
// # Errors
//
// Every failure of a started call is returned as *Error. Its Kind tells where
// the call failed; service failures wrap a *ServiceError carrying status,
// error code and request id. Reusing an AbortTracker fails before the call
// starts with ErrAbortTrackerInUse.
//
// Inspect service failures with errors.As:
//
//	var se *client.ServiceError
//	if errors.As(err, &se) && se.Code == "ResourceNotFoundException" {
//	    ...
//	}
//
// # Metrics
//
// Each call owns a metrics.Recorder. The collector used to report it is,
// in order of precedence: RequestConfig.MetricCollector, the client-level
// collector from WithMetricCollector, then the process default from
// WithDefaultMetricCollector. Metrics are disabled when the selected
// collector is not enabled.
package client
