package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tatemouser/ChatRoomNetworkProject/pkg/model"
)

// Console is the line-oriented operator interface. Input and output are
// injected so tests can drive it without a terminal.
type Console struct {
	server *Server
	in     io.Reader
	out    io.Writer
}

// NewConsole creates an operator console bound to a server.
func NewConsole(s *Server, in io.Reader, out io.Writer) *Console {
	return &Console{server: s, in: in, out: out}
}

// Run reads operator commands until EOF or context cancellation.
func (c *Console) Run(ctx context.Context) {
	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c.Execute(sc.Text())
	}
}

// Execute runs a single operator command.
func (c *Console) Execute(line string) {
	cmd := strings.TrimSpace(line)

	switch {
	case cmd == "help":
		c.printf("Available commands:\n")
		c.printf("  users - List connected users\n")
		c.printf("  stats - Show server statistics\n")
		c.printf("  broadcast <message> - Send message to all users\n")
		c.printf("  shutdown - Stop the server\n")

	case cmd == "users":
		sessions := c.server.registry.Snapshot()
		c.printf("Connected users (%d):\n", len(sessions))
		for _, sess := range sessions {
			if room := c.server.rooms.RoomOf(sess.ID); room != "" {
				c.printf("  %s from %s [room %s]\n", sess.Username, sess.PeerAddr, room)
			} else {
				c.printf("  %s from %s\n", sess.Username, sess.PeerAddr)
			}
		}

	case cmd == "stats":
		snap := c.server.metrics.Snapshot()
		c.printf("Server uptime: %d seconds\n", snap.UptimeSeconds)
		c.printf("Active connections: %d\n", snap.ActiveConnections)
		c.printf("Messages processed: %d\n", snap.MessagesProcessed)
		if snap.UptimeSeconds > 0 {
			c.printf("Messages per second: %.2f\n",
				float64(snap.MessagesProcessed)/float64(snap.UptimeSeconds))
		}
		c.printf("Bytes sent: %d\n", snap.BytesSent)
		c.printf("Bytes received: %d\n", snap.BytesReceived)

	case strings.HasPrefix(cmd, "broadcast "):
		text := strings.TrimPrefix(cmd, "broadcast ")
		c.server.router.BroadcastTCP(model.Message{
			Kind:    model.KindServerNotification,
			Sender:  model.ServerSender,
			Content: text,
		}, "", "")
		c.printf("Broadcast sent: %s\n", text)

	case cmd == "shutdown":
		c.printf("Shutting down server...\n")
		c.server.Shutdown()

	case cmd == "":
		// ignore blank lines

	default:
		c.printf("Unknown command. Type 'help' for available commands.\n")
	}
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
