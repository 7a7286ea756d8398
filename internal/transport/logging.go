// SPDX-License-Identifier: MIT
package transport

import (
	applog "fadeout/internal/log"
)

// LoggingTransport implements the Transport interface by writing each
// status to the debug log.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	if !applog.Enabled(applog.LevelDebug) {
		return nil
	}
	if st, ok := data.(Status); ok {
		applog.Debugf("Status %d: attenuation=%.3f fade=%t stream=%t level=%.1fdB peak=%.1fdB",
			st.Sequence, st.Attenuation, st.FadeActive, st.StreamActive, st.LevelDB, st.PeakDB)
		return nil
	}
	applog.Debugf("Transport: Received (%T): %+v", data, data)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
