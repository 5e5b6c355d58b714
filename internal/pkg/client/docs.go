// Package client implements the client side of the seqstream protocol.
//
// The client performs the following steps:
//	1. Connect to the server.
//	2. Send the handshake: a single line holding the requested sequence length N.
//	3. Receive items, one per line, and record each valid, new number in [1, N] in the reception window.
//	4. Stop when all N items have arrived, when the server closes the stream, or when no new item
//	   has arrived for the inactivity timeout.
//	5. Verify the received set against the checksum of 1..N, close the connection and return the report.
//
// Loss is an expected outcome: a timeout or a dropped connection ends the run with a partial report,
// not an error. Malformed, repeated and out-of-range items are skipped and counted.
//
// The inactivity timeout is enforced with a single read deadline that is moved forward only when an
// item is accepted, so bytes that never complete a valid item cannot keep the client waiting.
package client
