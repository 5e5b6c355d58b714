// Package server implements the server side of the seqstream protocol.
//
// The server performs the following steps:
// 	1. Listens on a TCP address and accepts connections until its context is cancelled.
// 	2. On accept, it registers a new session for the peer in the session store.
// 	3. The session handler reads the client handshake, a single line holding the requested
// 	   sequence length N, and writes the items 1..N in order, one per line.
// 	4. When the last item is written, or the peer goes away, the session is cleared and
// 	   its connection closed, and the server goes back to accepting.
//
// The server never retries an item: reliability is the client's concern. A peer that disconnects
// mid-stream ends its session and nothing else, so the listener survives any client behaviour.
//
// By default sessions are served one at a time on the accept loop. WithMaxSessions allows several
// sessions to be served concurrently, each on its own goroutine; the wire protocol is the same.
//
// The server optionally reports its accept loop state to a gRPC health service and exports
// prometheus metrics for sessions and items.
package server
