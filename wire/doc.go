// Package wire holds the protocol-agnostic, HTTP-shaped request and response
// values exchanged between the request pipeline and a transport.
//
// A Request is produced once by a marshaller and never mutated afterwards.
// Every attempt works on a Clone, so headers added while signing one attempt
// never leak into the next. Bodies report whether they can be rewound; a
// request carrying a non-rewindable body is sent at most once.
//
//	req := &wire.Request{
//	    Method:       http.MethodPost,
//	    Endpoint:     endpoint,
//	    ResourcePath: "/tables/orders",
//	    Body:         wire.BytesBody(payload),
//	}
package wire
