// Package rpc is the wire contract between the client and the remote
// authority: the gRPC service and method names, the JSON codec used in place
// of generated protobuf stubs, the request and response messages, and the
// access token claims.
package rpc
