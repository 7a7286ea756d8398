// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	applog "fadeout/internal/log"
	"fadeout/internal/transport/udp"
)

// monitor prints every status packet received on addr until ctx is done.
func monitor(ctx context.Context, addr string, out io.Writer) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	defer conn.Close()
	applog.Infof("Monitor: Listening for status packets on %s", conn.LocalAddr())

	buf := make([]byte, 512)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return err
		}

		st, err := udp.DecodeStatus(buf[:n])
		if err != nil {
			applog.Warnf("Monitor: Ignoring packet from %s: %v", from, err)
			continue
		}
		fmt.Fprintf(out, "#%-6d %s attenuation=%8.3f level=%6.1fdB peak=%6.1fdB fade=%t stream=%t playing=%t\n",
			st.Sequence, time.Unix(0, st.Timestamp).Format("15:04:05.000"),
			st.Attenuation, st.LevelDB, st.PeakDB, st.FadeActive, st.StreamActive, st.Playing)
	}
}
