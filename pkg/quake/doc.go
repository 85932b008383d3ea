/*
Package quake queries game servers speaking the Quake family out-of-band UDP
status protocol (QuakeWorld, Quake II, Quake III Arena and derivatives).

A query is a single blocking request/response exchange on a private socket:

	resp, err := quake.Query(quake.Quake3, netip.MustParseAddr("192.0.2.10"), 27960, nil, nil)
	if errors.Is(err, quake.ErrTimeout) {
		// server did not answer
	}
	fmt.Println(resp.Common().Name)

Every failure is a *Error classified as timeout, protocol, decode or socket.
*/
package quake
