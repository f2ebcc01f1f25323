package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/warpserver/internal/core/frame"
	"github.com/dcrodman/warpserver/internal/packets"
)

// StartUtilities spins off the services associated with debug mode.
func StartUtilities(logger *logrus.Logger, pprofPort int) {
	startPprofServer(logger, pprofPort)
}

// This function starts the default pprof HTTP server that can be accessed via localhost
// to get runtime information about the server. See https://golang.org/pkg/net/http/pprof/
func startPprofServer(logger *logrus.Logger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// PacketLogger writes every frame sent or received to the debug log.
type PacketLogger struct {
	Logger *logrus.Logger
}

// LogClientPacket records a frame read from a client.
func (p *PacketLogger) LogClientPacket(session string, f frame.Frame) {
	p.log(session, "client->server", f, true)
}

// LogServerPacket records a frame written to a client.
func (p *PacketLogger) LogServerPacket(session string, f frame.Frame) {
	p.log(session, "server->client", f, false)
}

func (p *PacketLogger) log(session, direction string, f frame.Frame, fromClient bool) {
	if p == nil || p.Logger == nil {
		return
	}
	p.Logger.WithFields(logrus.Fields{
		"session":   session,
		"direction": direction,
		"type":      packets.Type(f.Type).String(),
		"length":    len(f.Payload),
	}).Debug(DescribeFrame(f, fromClient))
}

// DescribeFrame returns a readable dump of f: the decoded message when the
// payload parses and a hex dump otherwise.
func DescribeFrame(f frame.Frame, fromClient bool) string {
	if !frame.IsSplitType(f.Type) {
		if msg, err := packets.Decode(f, fromClient); err == nil {
			return dumpConfig.Sdump(msg)
		}
	}
	return spew.Sdump(f.Payload)
}
