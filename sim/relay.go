package sim

import "github.com/dqcsim/dqcsim-go/transport"

// relay pipes envelopes between two Channels in both directions until
// either side closes or errors. It is used to splice a plugin's
// downstream dial-out connection to the next plugin's upstream
// spawn-accept connection, so adjacent plugins exchange gate-stream
// messages directly while the driver only owns the sockets.
func relay(a, b transport.Channel) {
	done := make(chan struct{}, 2)
	pipe := func(from, to transport.Channel) {
		for {
			env, err := from.Recv()
			if err != nil {
				break
			}
			if err := to.Send(env); err != nil {
				break
			}
		}
		done <- struct{}{}
	}
	go pipe(a, b)
	go pipe(b, a)
	<-done
	<-done
}
