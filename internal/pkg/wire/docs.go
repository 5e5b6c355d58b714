// Package wire implements the seqstream framing.
//
// Every unit on the wire is an ASCII decimal integer terminated by a newline:
//
//	client -> server:  "<N>\n"          handshake, the requested sequence length
//	server -> client:  "1\n2\n...N\n"   the sequence items, in order
//
// A trailing carriage return is tolerated. The Decoder retains partial data between
// reads, so items may be split across arbitrary read boundaries. When the stream ends,
// Flush yields a final undelimited item, which makes a bare "1" a valid one-item stream.
package wire
