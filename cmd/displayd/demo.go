package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/client"
	"github.com/gogpu/display/internal/pattern"
	"github.com/gogpu/display/ipc"
	"github.com/gogpu/display/server"
	"github.com/gogpu/display/shell"
)

func newDemoCmd(root *rootCmd) *cobra.Command {
	var (
		frames int
		width  int
		height int
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the server with a built-in client that renders test patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := root.newServer(cmd)
			if err != nil {
				return err
			}
			demoDone := make(chan error, 1)
			srv.AddStartCallback(func() {
				go func() {
					demoDone <- runDemoClient(cmd.Context(), srv, buffer.Size{Width: width, Height: height}, frames)
					srv.Stop()
				}()
			})
			root.exitCode = runUntilSignal(cmd.Context(), srv)
			select {
			case err := <-demoDone:
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rendered %d frames\n", frames)
			default:
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&frames, "frames", 120, "frames the demo client renders before exiting")
	cmd.Flags().IntVar(&width, "surface-width", 300, "demo surface width")
	cmd.Flags().IntVar(&height, "surface-height", 200, "demo surface height")
	return cmd
}

// runDemoClient plays both sides of a client connection in one process:
// each frame the server exports the client buffer over a socket pair, the
// client maps it, renders a pattern and advances.
func runDemoClient(ctx context.Context, srv *server.Server, size buffer.Size, frames int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sh := srv.Shell()
	if sh == nil {
		return errors.New("demo: server is not running")
	}

	sess, err := sh.OpenSession(os.Getpid(), "demo", shell.EventSinkFunc(func(ev shell.Event) {
		display.Logger().Debug("demo: event", "kind", ev.Kind.String(), "surface", int32(ev.Surface))
	}))
	if err != nil {
		return err
	}
	defer func() { _ = sh.CloseSession(sess) }()

	// The patterns are 32-bit.
	const format = buffer.FormatABGR8888
	id, err := sh.CreateSurfaceFor(sess, srv.SurfaceDefaults().
		WithName("demo").WithSize(size.Width, size.Height).WithFormat(format))
	if err != nil {
		return err
	}
	sh.HandleSurfaceCreated(sess)
	proxy, err := sess.Surface(id)
	if err != nil {
		return err
	}

	serverConn, clientConn, err := connPair()
	if err != nil {
		return err
	}
	defer serverConn.Close()

	conn := client.NewConn(clientConn, buffer.NewShmAllocator(), size, format)
	defer conn.Close()
	for i := range frames {
		pkg, err := proxy.ClientPackage()
		if err != nil {
			return fmt.Errorf("demo: frame %d: %w", i, err)
		}
		if err := ipc.SendPackage(serverConn, pkg); err != nil {
			_ = pkg.Close()
			return err
		}
		h, err := conn.NextBuffer()
		if err != nil {
			return err
		}
		if i%2 == 0 {
			pattern.FillSolid(h, size.Width, size.Height)
		} else {
			pattern.FillQuadrants(h, size.Width, size.Height)
		}

		if err := proxy.AdvanceClientBufferContext(ctx); err != nil {
			return err
		}
	}
	st := conn.Cache().Stats()
	display.Logger().Info("demo: done", "frames", frames, "mapped", st.Misses, "reused", st.Hits)
	return nil
}

func connPair() (*net.UnixConn, *net.UnixConn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("demo: socketpair: %w", err)
	}
	a, errA := fileConn(fds[0], "server")
	b, errB := fileConn(fds[1], "client")
	if err := errors.Join(errA, errB); err != nil {
		if a != nil {
			a.Close()
		}
		if b != nil {
			b.Close()
		}
		return nil, nil, err
	}
	return a, b, nil
}

func fileConn(fd int, name string) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()
	c, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("demo: %s conn: %w", name, err)
	}
	return c.(*net.UnixConn), nil
}
