package link

// Values are read and modified atomically, but not consistently,
// i.e. it is possible to read .Count=1 .Size=0 because Size has not updated yet.

import (
	"expvar"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/temoto/atomic_clock"
)

type Stat struct {
	Recv CountSizePair
	Send CountSizePair

	Handshake expvar.Int // SYN answered
	Complete  expvar.Int // bare ACK
	Fin       expvar.Int
	Message   expvar.Int // data segments dispatched

	ErrFormat     expvar.Int
	ErrBadRequest expvar.Int
	ErrActuator   expvar.Int
	ErrTransport  expvar.Int
	ErrJournal    expvar.Int
	ErrLog        expvar.Int // log2 error hook

	LastRecv atomic_clock.Clock
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"recv":%s,"send":%s,"handshake":%d,"complete":%d,"fin":%d,"message":%d,"error":{"format":%d,"bad_request":%d,"actuator":%d,"transport":%d,"journal":%d,"log":%d}}`,
		s.Recv.String(), s.Send.String(),
		s.Handshake.Value(), s.Complete.Value(), s.Fin.Value(), s.Message.Value(),
		s.ErrFormat.Value(), s.ErrBadRequest.Value(), s.ErrActuator.Value(),
		s.ErrTransport.Value(), s.ErrJournal.Value(), s.ErrLog.Value())
}

// Register exports counters as prometheus collectors. Stat stays source of truth.
func (s *Stat) Register(reg prometheus.Registerer, namespace string) {
	factory := promauto.With(reg)
	counter := func(name, help string, v *expvar.Int) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Value()) })
	}
	counter("recv_datagrams_total", "Datagrams received", &s.Recv.Count)
	counter("recv_bytes_total", "Bytes received", &s.Recv.Size)
	counter("send_datagrams_total", "Datagrams sent", &s.Send.Count)
	counter("send_bytes_total", "Bytes sent", &s.Send.Size)
	counter("handshakes_total", "SYN answered with SYN|ACK", &s.Handshake)
	counter("handshake_completions_total", "Bare ACK received", &s.Complete)
	counter("fins_total", "FIN received", &s.Fin)
	counter("messages_total", "Data segments dispatched", &s.Message)
	counter("format_errors_total", "Datagrams dropped as unparseable", &s.ErrFormat)
	counter("bad_requests_total", "Data segments answered with 400", &s.ErrBadRequest)
	counter("actuator_errors_total", "Data segments answered with 500", &s.ErrActuator)
	counter("transport_errors_total", "Socket send/receive errors", &s.ErrTransport)
	counter("journal_errors_total", "Journal write errors", &s.ErrJournal)
	counter("log_errors_total", "Errors logged", &s.ErrLog)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "seconds_since_last_recv",
		Help:      "Time since last received datagram, 0 before first one",
	}, func() float64 {
		if s.LastRecv.IsZero() {
			return 0
		}
		return atomic_clock.Since(&s.LastRecv).Seconds()
	})
}

type CountSizePair struct {
	Count expvar.Int
	Size  expvar.Int
}

func (csp *CountSizePair) Register(size int) {
	csp.Count.Add(1)
	csp.Size.Add(int64(size))
}

func (csp *CountSizePair) String() string {
	return fmt.Sprintf(`{"count":%d,"size":%d}`, csp.Count.Value(), csp.Size.Value())
}
