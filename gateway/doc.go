// Package gateway performs outbound HTTP exchanges with the container controller.
//
// A call is a single attempt: one request, one response capped at a byte
// ceiling. Transport failures (unreachable host, timeout, oversized reply)
// come back as *TransportError; status and body interpretation belong to the
// caller.
//
// Usage:
//
//	gw := gateway.New(logger, gateway.WithTimeout(30*time.Second))
//	resp, err := gw.Call(ctx, gateway.Request{
//	    URL:              "http://controller/start",
//	    Method:           http.MethodPost,
//	    Headers:          gateway.JSONHeaders(),
//	    Body:             payload,
//	    MaxResponseBytes: 2000,
//	})
package gateway
