/*
Package wire implements the framing used between a lambchops client and server.

A connection carries a stream of CBOR items. Each item is a Frame, and CBOR items are self-delimiting, so there is
no length prefix. A frame is tagged with a Kind, optionally names the type of its body, and carries the body as raw
CBOR so it can be resolved after it has been read from the stream.

Per request cycle, the client writes:

1. Zero or more CodeUnit frames, one for each unit the payload depends on that has not been sent on this connection yet.
2. Exactly one payload frame: ValueRequest, FireRequest, or Object.

The server answers a ValueRequest with exactly one Reply frame. FireRequest and Object frames are never answered, and
neither are CodeUnit frames.

There is no handshake, no versioning and no multiplexing: a client must read the reply to a ValueRequest before it
writes the next one.
*/
package wire
