package runtime

import "os"

type ServiceOption func(*ServiceCtx)

// WithServiceTermination replaces the signal channel, letting callers stop
// the service without sending a real signal.
func WithServiceTermination(ch chan os.Signal) ServiceOption {
	return func(c *ServiceCtx) {
		c.shutdownChannel = ch
	}
}

func WithWaitingForServer() ServiceOption {
	return func(c *ServiceCtx) {
		c.serverReady = make(chan struct{})
	}
}
